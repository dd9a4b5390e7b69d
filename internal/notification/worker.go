package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/Goitonthefloor/Kids-Control/internal/model"
)

// EventKind classifies an engine event worth pushing to parents.
type EventKind string

const (
	EventPrewarn      EventKind = "prewarn"
	EventLimitReached EventKind = "limit-reached"
)

// Event is one notification job.
type Event struct {
	Kind     EventKind
	Username string
	Minutes  int
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers delivering push notifications to
// parent browsers subscribed to a child.
type WorkerPool struct {
	size    int
	jobs    chan Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.deliver(ctx, ev)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event without blocking. The decision path calls this;
// dropping a notification is better than stalling an access check.
func (wp *WorkerPool) Dispatch(ev Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("notification queue full, dropping %s event for %s", ev.Kind, ev.Username)
	}
}

// PrewarnShown implements engine.Notifier.
func (wp *WorkerPool) PrewarnShown(username string, minutesLeft int) {
	wp.Dispatch(Event{Kind: EventPrewarn, Username: username, Minutes: minutesLeft})
}

// DailyLimitReached implements engine.Notifier.
func (wp *WorkerPool) DailyLimitReached(username string, usedMinutes int) {
	wp.Dispatch(Event{Kind: EventLimitReached, Username: username, Minutes: usedMinutes})
}

// deliver fetches the subscriptions for the event's child and pushes the
// message to each of them.
func (wp *WorkerPool) deliver(ctx context.Context, ev Event) {
	var child model.Child
	if err := wp.db.WithContext(ctx).Where("username = ?", ev.Username).First(&child).Error; err != nil {
		log.Printf("notification: fetch child %s: %v", ev.Username, err)
		return
	}
	label := child.DisplayName
	if label == "" {
		label = child.Username
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_child_mapping scm ON scm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("scm.child_id = ?", child.ID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("notification: fetch subscriptions for %s: %v", ev.Username, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var message string
	switch ev.Kind {
	case EventPrewarn:
		message = fmt.Sprintf("%s has %d minutes of screen time left today", label, ev.Minutes)
	case EventLimitReached:
		message = fmt.Sprintf("%s reached today's screen time limit (%d minutes used)", label, ev.Minutes)
	default:
		return
	}

	log.Printf("sending %d notifications for %s (%s)", len(subscriptions), ev.Username, ev.Kind)
	for _, sub := range subscriptions {
		wp.push(ctx, sub, []byte(message))
	}
}

// push sends a single web push notification and drops expired
// subscriptions.
func (wp *WorkerPool) push(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription for endpoint %s is expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Select("Children").Delete(&sub).Error; err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
