package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
	"github.com/clippy-oss/homie/tranzio/internal/logger"
	"github.com/clippy-oss/homie/tranzio/internal/repository"
	"github.com/clippy-oss/homie/tranzio/internal/roster"
	"github.com/clippy-oss/homie/tranzio/internal/session"
)

var sampleTexts = []string{
	"Hey! How are you doing?",
	"Just checking in 😊",
	"Can we meet tomorrow?",
	"Thanks for your help!",
	"See you later!",
	"That sounds great!",
	"Let me know when you're free",
	"Perfect! I'll be there",
	"Did you see the latest news?",
	"Have a great day!",
	"What time works for you?",
	"I'll send it over shortly",
	"Looking forward to it!",
	"Let's catch up soon",
	"Hope you're doing well",
	"Have you tried the translation toggle yet?",
	"¿Nos vemos mañana?",
	"Merci beaucoup !",
	"Guten Morgen!",
	"See you at the meeting",
}

func main() {
	dbPath := flag.String("db", envOr("TRANZIO_DATABASE_PATH", "tranzio.db"), "Database file path")
	userID := flag.String("user", envOr("TRANZIO_USER_ID", session.DefaultLocalUserID), "Local user id")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	logger.Init("info")
	log := logger.Module("seed")

	if err := run(context.Background(), *dbPath, *userID, rand.New(rand.NewSource(*seed))); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Str("db", *dbPath).Msg("seeded roster and history")
}

func run(ctx context.Context, dbPath, userID string, rng *rand.Rand) error {
	db, err := repository.Open(dbPath)
	if err != nil {
		return err
	}

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	now := time.Now()
	if _, err := repository.SeedRoster(ctx, convRepo, roster.Sample(now)); err != nil {
		return err
	}

	convs, err := convRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}

	var directIDs []string
	for _, c := range convs {
		if c.Kind() == domain.ConversationKindDirect {
			directIDs = append(directIDs, c.Info().ID)
		}
	}

	for _, c := range convs {
		id := c.Info().ID
		if err := msgRepo.DeleteByConversation(ctx, id); err != nil {
			return fmt.Errorf("failed to clear %s: %w", id, err)
		}

		msgs := generate(c, userID, directIDs, now, rng)
		for _, m := range msgs {
			if err := msgRepo.Create(ctx, m); err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
		}

		unread := 0
		for i := len(msgs) - 1; i >= 0 && msgs[i].SenderID != userID; i-- {
			unread++
		}
		last := msgs[len(msgs)-1]
		if err := convRepo.UpdateLastMessage(ctx, id, last.Content, last.Timestamp); err != nil {
			return err
		}
		if err := convRepo.UpdateUnreadCount(ctx, id, unread); err != nil {
			return err
		}
		fmt.Printf("%-10s %2d messages, %d unread\n", id, len(msgs), unread)
	}
	return nil
}

// generate builds 8-14 messages spread over the last one to three days,
// so rendered logs show several date separators.
func generate(c domain.Conversation, userID string, members []string, now time.Time, rng *rand.Rand) []*domain.Message {
	id := c.Info().ID
	n := 8 + rng.Intn(7)
	ts := now.Add(-time.Duration(1+rng.Intn(3)) * 24 * time.Hour)

	msgs := make([]*domain.Message, 0, n)
	var lastID int64
	for i := 0; i < n; i++ {
		if i > 0 {
			// Spread the remaining messages over the time left until now.
			share := now.Sub(ts) / time.Duration(n-i)
			ts = ts.Add(time.Duration(rng.Int63n(int64(share)+1)) + share/2)
			if ts.After(now) {
				ts = now
			}
		}

		sender := userID
		if rng.Float32() >= 0.4 {
			switch c.(type) {
			case *domain.GroupConversation:
				if len(members) > 0 {
					sender = members[rng.Intn(len(members))]
				}
			default:
				sender = id
			}
		}

		msgID := ts.UnixMilli()
		if msgID <= lastID {
			msgID = lastID + 1
		}
		lastID = msgID

		msgs = append(msgs, domain.NewTextMessage(msgID, id, sender, sampleTexts[rng.Intn(len(sampleTexts))], ts))
	}
	return msgs
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
