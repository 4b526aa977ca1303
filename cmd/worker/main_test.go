package main

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"tdp/internal/messaging/consumer"
	"tdp/internal/models"
)

func TestSeedDemoMessages(t *testing.T) {
	broker := consumer.NewMockBroker(log.New(io.Discard, "", 0), 0)
	if err := seedDemoMessages(context.Background(), broker); err != nil {
		t.Fatal(err)
	}
	if got := broker.Stats().Published; got != 3 {
		t.Fatalf("published = %d, want 3", got)
	}

	crash := 0
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		d, ack, err := broker.Consume(ctx)
		cancel()
		if err != nil {
			t.Fatal(err)
		}
		env, err := models.DecodeEnvelope(d.Data)
		if err != nil {
			t.Fatalf("demo message %s does not decode: %v", d.MessageID, err)
		}
		if strings.Contains(env.Text, "crash_test") {
			crash++
		}
		ack(true)
	}
	if crash != 1 {
		t.Fatalf("crash_test demo messages = %d, want 1", crash)
	}
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCmd(log.New(io.Discard, "", 0))
	flag := cmd.Flags().Lookup("config")
	if flag == nil || flag.DefValue != defaultConfigPath {
		t.Fatalf("config flag = %+v", flag)
	}
	found := false
	for _, sub := range cmd.Commands() {
		if sub.Name() == "version" {
			found = true
		}
	}
	if !found {
		t.Fatal("version subcommand missing")
	}
}
