package chat

// JoinCommand moves a connection to a room.
type JoinCommand struct {
	RoomID RoomID `validate:"required"`
}

// PostMessageCommand is validated on its trimmed content; the content is stored as submitted.
type PostMessageCommand struct {
	RoomID  RoomID `validate:"required"`
	UserID  UserID `validate:"required"`
	Content string `validate:"required"`
}

// GetMessageCommand reads a history page: messages with an id lower than Before
// (0 for the newest), newest first.
type GetMessageCommand struct {
	RoomID RoomID `validate:"required"`
	Before int64  `validate:"gte=0"`
	Limit  int    `validate:"min=1,max=200"`
}
