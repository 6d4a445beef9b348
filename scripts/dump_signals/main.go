// Command dump_signals prints every persisted signal and its positions.
// Read-only; safe to run against a live bot's database.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	var dbPath string
	flag.StringVar(&dbPath, "db", "signals.db", "Path to the signals database")
	flag.Parse()

	db, err := sql.Open("sqlite3", dbPath+"?mode=ro")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`
		SELECT id, channel_title, chat_id, message_id, symbol, open_price,
		       second_price, stop_loss, tp_list, created_at
		FROM signals ORDER BY id`)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id, chatID, messageID         int64
			channel, symbol, tps, created string
			open, second, sl              float64
		)
		if err := rows.Scan(&id, &channel, &chatID, &messageID, &symbol, &open, &second, &sl, &tps, &created); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("signal %d [%s] %s chat=%d msg=%d open=%.2f second=%.2f sl=%.2f tps=%s (%s)\n",
			id, channel, symbol, chatID, messageID, open, second, sl, tps, created)

		posRows, err := db.Query(`SELECT id, ticket, user_id, is_first, is_second FROM positions WHERE signal_id = ? ORDER BY id`, id)
		if err != nil {
			log.Fatalf("Position query failed: %v", err)
		}
		for posRows.Next() {
			var (
				posID, ticket, userID int64
				isFirst, isSecond     bool
			)
			if err := posRows.Scan(&posID, &ticket, &userID, &isFirst, &isSecond); err != nil {
				log.Fatalf("Position scan failed: %v", err)
			}
			leg := "second"
			if isFirst {
				leg = "first"
			}
			fmt.Printf("  position %d ticket=%d account=%d leg=%s\n", posID, ticket, userID, leg)
		}
		if err := posRows.Err(); err != nil {
			log.Fatalf("Position rows: %v", err)
		}
		_ = posRows.Close()
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Rows: %v", err)
	}
}
