package alerting

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testDigest() Digest {
	return Digest{
		Recipient:   "ops@example.com",
		Subject:     "[Metric Alert] 1 trigger(s) detected",
		GeneratedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestEmailNotifierSuccess(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)

	notifier := NewEmailNotifier(EmailOptions{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		Password: "secret",
		Timeout:  time.Second,
	}, zerolog.Nop())
	notifier.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := notifier.Notify(context.Background(), testDigest()); err != nil {
		t.Fatalf("Notify 应成功: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %s", gotAddr)
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Fatalf("envelope incorrect: from=%s to=%v", gotFrom, gotTo)
	}

	msg := string(gotMsg)
	for _, want := range []string{
		"From: Metrics Bot <bot@example.com>",
		"To: ops@example.com",
		"Subject: [Metric Alert] 1 trigger(s) detected",
		"multipart/alternative",
		"text/plain; charset=UTF-8",
		"text/html; charset=UTF-8",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestEmailNotifierSendError(t *testing.T) {
	notifier := NewEmailNotifier(EmailOptions{Host: "smtp.example.com", Port: 587, Timeout: time.Second}, zerolog.Nop())
	notifier.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	if err := notifier.Notify(context.Background(), testDigest()); err == nil {
		t.Fatal("发送失败应返回错误")
	}
}

func TestEmailNotifierTimeout(t *testing.T) {
	notifier := NewEmailNotifier(EmailOptions{Host: "smtp.example.com", Port: 587, Timeout: 10 * time.Millisecond}, zerolog.Nop())
	notifier.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		time.Sleep(time.Second)
		return nil
	}

	err := notifier.Notify(context.Background(), testDigest())
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("应超时报错, got %v", err)
	}
}

func TestEmailNotifierUnconfigured(t *testing.T) {
	notifier := NewEmailNotifier(EmailOptions{}, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testDigest()); err == nil {
		t.Fatal("未配置 host/port 应报错")
	}
}
