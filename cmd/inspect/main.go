package main

import (
	"chat-relay/domain/chat"
	"chat-relay/infrastructure/storage"
	"chat-relay/internal"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	room := flag.String("room", "1", "Room to print")
	before := flag.Int64("before", 0, "Only messages with a lower id, 0 for the newest")
	limit := flag.Int("limit", 50, "Number of messages")
	flag.Parse()

	// BypassLockGuard lets the inspector read while a relay holds the directory lock.
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}

	repo, err := storage.NewMessageRepository(db, logs.GetLoggerFromString("ERROR"))
	if err != nil {
		_ = db.Close()
		log.Fatal(err)
	}
	defer func() { _ = repo.Close() }()

	messages, err := repo.History(context.Background(), chat.RoomID(*room), *before, *limit)
	if err != nil {
		log.Fatal("Error while reading history: ", err)
	}
	printTable(os.Stdout, messages)
	fmt.Printf("\n%d message(s) in room %s\n", len(messages), *room)
}

func printTable(w io.Writer, messages []chat.Message) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Created At", "User", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range messages {
		table.Append([]string{
			strconv.FormatInt(m.ID, 10),
			m.CreatedAt.Format(time.RFC3339),
			string(m.UserID),
			m.Content,
		})
	}
	table.Render()
}
