package main

import (
	"bytes"
	"chat-relay/domain/chat"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	printTable(&out, []chat.Message{
		{ID: 2, RoomID: "1", UserID: "8", Content: "second", CreatedAt: at},
		{ID: 1, RoomID: "1", UserID: "7", Content: "first", CreatedAt: at},
	})

	req.Contains(out.String(), "ID")
	req.Contains(out.String(), "2026-01-02T03:04:05Z")
	req.Contains(out.String(), "second")
	req.Less(bytes.Index(out.Bytes(), []byte("second")), bytes.Index(out.Bytes(), []byte("first")))
}
