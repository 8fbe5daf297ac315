package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/dimitrije/raidroom-api/pkg/client"
	"github.com/dimitrije/raidroom-api/pkg/clock"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type settings struct {
	APIURL string `env:"RAIDWATCH_API_URL" envDefault:"http://localhost:8080/api/v1"`
	Token  string `env:"RAIDWATCH_TOKEN"`
}

// raidwatch polls one room and prints its countdown every second, the way a
// mobile client would render it.
func main() {
	_ = godotenv.Load()

	var s settings
	if err := env.Parse(&s); err != nil {
		logrus.Fatalf("Failed to parse environment: %v", err)
	}

	apiURL := flag.String("api", s.APIURL, "base URL of the room API")
	token := flag.String("token", s.Token, "bearer token")
	join := flag.Bool("join", false, "join the room before watching")
	ready := flag.Bool("ready", false, "mark yourself friend-ready after joining")
	flag.Parse()

	if flag.NArg() != 1 || *token == "" {
		fmt.Println("Usage: raidwatch [-api url] [-token jwt] [-join] [-ready] <room-id>")
		os.Exit(1)
	}

	roomID, err := uuid.Parse(flag.Arg(0))
	if err != nil {
		logrus.Fatalf("Invalid room id: %v", err)
	}

	// The server verifies the token; here it only tells us which member we are.
	userID := uuid.Nil
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(*token, &claims); err == nil {
		if id, err := uuid.Parse(claims.Subject); err == nil {
			userID = id
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := client.NewWatcher(client.New(*apiURL, *token), roomID, userID,
		client.OnUpdate(printSnapshot),
		client.OnError(func(err error) {
			logrus.WithError(err).Warn("poll failed")
		}),
	)

	if *join {
		if err := watcher.Join(ctx); err != nil && !errors.Is(err, client.ErrAlreadyMember) {
			logrus.Fatalf("Failed to join: %v", err)
		}
	}
	if *ready {
		if err := watcher.SetReady(ctx, true); err != nil {
			logrus.WithError(err).Warn("failed to set ready")
		}
	}

	src := clock.NewSource(0)
	defer src.Stop()

	go watcher.Tick(ctx, src, func(cd clock.Countdown) {
		if cd.Expired {
			fmt.Print("\rstarted            ")
			return
		}
		fmt.Printf("\rstarts in %-12s", cd.Label)
	})

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.Fatalf("Stopped: %v", err)
	}
	fmt.Println()
}

func printSnapshot(s *dto.RoomSnapshotResponse) {
	var me []string
	if s.Me.IsOwner {
		me = append(me, "owner")
	} else if s.Me.IsMember {
		me = append(me, "member")
	}
	if s.Me.FriendReady {
		me = append(me, "ready")
	}
	if s.Me.HasReviewed {
		me = append(me, "reviewed")
	}

	fmt.Printf("\n[v%d] %s %s  members %d/%d  ready %d/%d  reviews %d/%d  you: %s\n",
		s.Room.Version, s.Room.BossID, s.Room.Status,
		s.Room.CurrentMembers, s.Room.MaxMembers,
		s.Readiness.Ready, s.Readiness.Required,
		s.ReviewProgress.Done, s.ReviewProgress.Total,
		strings.Join(me, ","),
	)
}
