//cmd/seeder/main.go
package main

import (
    "context"
    "database/sql"
    "fmt"
    "log"
    "os"

    _ "github.com/lib/pq"
    "github.com/joho/godotenv"

    "github.com/unclebandit/mailblast-backend/internal/config"
    "github.com/unclebandit/mailblast-backend/internal/storage"
)

// sampleCSV is written into blob storage so the seeded batch is immediately
// generatable.
const sampleCSV = `email,first_name,last_name,plan,balance
alice@example.com,Alice,Anderson,gold,120.50
bob@example.com,Bob,Brown,basic,0
carol@example.com,Carol,Clark,gold,15
`

func main() {
    if err := godotenv.Load(); err != nil {
        log.Println("⚠️ No .env file found, relying on OS environment variables")
    }

    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" {
        dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
            os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
            os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME"))
    }

    db, err := sql.Open("postgres", dsn)
    if err != nil {
        log.Fatal(err)
    }
    defer db.Close()

    seedFiles := []string{
        "seed/schema.sql",
        "seed/smtp_configs.sql",
        "seed/batches.sql",
    }

    for _, file := range seedFiles {
        content, err := os.ReadFile(file)
        if err != nil {
            log.Fatalf("failed to read %s: %v", file, err)
        }

        _, err = db.Exec(string(content))
        if err != nil {
            log.Fatalf("failed to execute %s: %v", file, err)
        }
        fmt.Printf("Seeded: %s\n", file)
    }

    cfg := config.Load()
    store, err := storage.NewFSStorage(cfg.StoragePath)
    if err != nil {
        log.Fatalf("failed to init storage: %v", err)
    }
    if err := store.Put(context.Background(), "recipients/sample.csv", []byte(sampleCSV)); err != nil {
        log.Fatalf("failed to write sample CSV: %v", err)
    }
    fmt.Println("Seeded: recipients/sample.csv")

    fmt.Println("Database seeding completed successfully!")
}
