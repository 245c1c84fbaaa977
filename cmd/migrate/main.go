package main

import (
	"log"
	"os"

	"art-curator-be/internal/model"
	"art-curator-be/pkg/database"

	"github.com/joho/godotenv"
)

// Creates the result cache table used by RESULT_CACHE_BACKEND=postgres.
func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running AutoMigrate for result cache...")
	if err := db.AutoMigrate(&model.ResultCacheEntry{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	if err := db.Exec(`DELETE FROM result_cache_entries WHERE expires_at <= NOW()`).Error; err != nil {
		log.Printf("Warn: Failed to purge expired entries: %v", err)
	}

	log.Println("✅ Migration complete")
}
