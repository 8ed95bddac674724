package memory

import (
	"context"
	"testing"
	"time"
)

func TestAdapter_ListTopicsReflectsAddRemove(t *testing.T) {
	a := New()
	a.AddLocalTopic("/chat", "Text")

	ctx := context.Background()
	topics, err := a.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if got := topics["/chat"]; len(got) != 1 || got[0] != "Text" {
		t.Fatalf("unexpected types for /chat: %v", got)
	}

	a.RemoveLocalTopic("/chat")
	topics, err = a.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if _, ok := topics["/chat"]; ok {
		t.Fatalf("expected /chat to be gone, still present: %v", topics)
	}
}

func TestAdapter_PublishAndSubscribe(t *testing.T) {
	a := New()
	a.AddLocalTopic("/chat", "Text")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub, err := a.SubscribeRaw(ctx, "/chat", "Text")
	if err != nil {
		t.Fatalf("SubscribeRaw: %v", err)
	}
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.PublishLocal(ctx, "/chat", []byte{1, 2, 3})
	}()

	payload, ok, err := sub.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("Next: payload=%v ok=%v err=%v", payload, ok, err)
	}
	if string(payload) != "\x01\x02\x03" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	<-done
}

func TestAdapter_ConsumerCount(t *testing.T) {
	a := New()
	ctx := context.Background()

	pub, err := a.CreatePublisher(ctx, "/chat", "Text")
	if err != nil {
		t.Fatalf("CreatePublisher: %v", err)
	}

	count, err := pub.DownstreamConsumerCount(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected 0 consumers initially, got %d (err=%v)", count, err)
	}

	if err := a.AttachConsumer("/chat"); err != nil {
		t.Fatalf("AttachConsumer: %v", err)
	}
	if count, _ = pub.DownstreamConsumerCount(ctx); count != 1 {
		t.Fatalf("expected 1 consumer, got %d", count)
	}

	if err := a.DetachConsumer("/chat"); err != nil {
		t.Fatalf("DetachConsumer: %v", err)
	}
	if count, _ = pub.DownstreamConsumerCount(ctx); count != 0 {
		t.Fatalf("expected 0 consumers after detach, got %d", count)
	}
}

func TestAdapter_PublishRecordsPayloads(t *testing.T) {
	a := New()
	ctx := context.Background()

	pub, err := a.CreatePublisher(ctx, "/chat", "Text")
	if err != nil {
		t.Fatalf("CreatePublisher: %v", err)
	}
	if err := pub.Publish(ctx, []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := a.Received("/chat")
	if len(got) != 1 || string(got[0]) != "hello" {
		t.Fatalf("unexpected received payloads: %v", got)
	}
}
