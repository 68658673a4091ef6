package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"classreminder/internal/config"
	"classreminder/internal/models"
	"classreminder/internal/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// The dispatcher and the mail relay poll every few seconds; keep them out of the SQL log
var pollingQueryPatterns = []string{
	`FROM "class_occurrence"`,
	`FROM "outbound_mail" WHERE status =`,
	"JOIN enrollment ON enrollment.student_id",
}

// InitDB initializes the database connection and runs migrations
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DSN()

	// Create base logger
	baseLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags|log.Lshortfile),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel(cfg.GinMode),
			IgnoreRecordNotFoundError: true,
			Colorful:                  cfg.GinMode != "release",
		},
	)

	customLogger := utils.NewCustomGormLogger(baseLogger, pollingQueryPatterns...)

	// Open connection with retry logic
	var db *gorm.DB
	var err error
	maxRetries := 5
	retryDelay := time.Second * 5

	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), GormConfig(customLogger))
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d failed: %v", i+1, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database connection established and migrations completed")
	return db, nil
}

// GormConfig returns the gorm settings shared by every dialect
func GormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger: l,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true, // Use singular table names
		},
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   false,
		DisableForeignKeyConstraintWhenMigrating: false,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates or updates every table the service owns
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Course{},
		&models.Batch{},
		&models.Student{},
		&models.Enrollment{},
		&models.ClassOccurrence{},
		&models.ReminderRecord{},
		&models.OutboundMail{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func logLevel(ginMode string) logger.LogLevel {
	if ginMode == "release" {
		return logger.Warn
	}
	return logger.Info
}
