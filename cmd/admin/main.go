package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

  archive <room_id>        force an active room to archived
  block <room_id>          force an active room to blocked
  rooms <user_id>          list a user's rooms
  unread <user_id>         count a user's unread notifications
  outbox-len <channel>     jobs waiting for email, push or sms`

// store is what the commands need plus a way to release it.
type store interface {
	storage.Storage
	Close() error
}

func main() {
	os.Exit(realMain(os.Args[1:], openStorage))
}

func openStorage(ctx context.Context) (store, error) {
	cfg, err := config.LoadStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	s, err := storage.Open(ctx, *cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	return s, nil
}

// realMain returns the process exit code so deferred cleanup runs before exit.
func realMain(args []string, open func(context.Context) (store, error)) int {
	if len(args) < 1 {
		fmt.Println(usage)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := open(ctx)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("failed to close storage: %v", err)
		}
	}()

	if err := run(ctx, s, args); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, s storage.Storage, args []string) error {
	command := args[0]

	switch command {
	case "archive", "block":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin %s <room_id>", command)
		}
		to := models.RoomArchived
		if command == "block" {
			to = models.RoomBlocked
		}
		return forceStatus(ctx, s, args[1], to)

	case "rooms":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin rooms <user_id>")
		}
		rooms, err := s.ListRoomsForUser(ctx, args[1])
		if err != nil {
			return err
		}
		for _, r := range rooms {
			other, _ := r.Counterpart(args[1])
			fmt.Printf("%s\t%s\twith %s\tlast activity %s\n", r.ID, r.Status, other, r.LastActivityAt.Format(time.RFC3339))
		}
		return nil

	case "unread":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin unread <user_id>")
		}
		n, err := s.CountUnread(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("User %s has %d unread notifications.\n", args[1], n)
		return nil

	case "outbox-len":
		if len(args) != 2 {
			return fmt.Errorf("usage: admin outbox-len <channel>")
		}
		ch := models.Channel(args[1])
		switch ch {
		case models.ChannelEmail, models.ChannelPush, models.ChannelSMS:
		default:
			return fmt.Errorf("unknown channel %q", args[1])
		}
		n, err := s.OutboxLen(ctx, ch)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d queued\n", ch, n)
		return nil
	}

	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func forceStatus(ctx context.Context, s storage.Storage, roomID string, to models.RoomStatus) error {
	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	ok, err := s.TransitionRoomStatus(ctx, roomID, models.RoomActive, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("room %s is %s, only active rooms can change status", roomID, room.Status)
	}
	fmt.Printf("Room %s is now %s.\n", roomID, to)
	return nil
}
