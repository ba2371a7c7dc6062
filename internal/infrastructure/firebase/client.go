package firebase

import (
	"context"
	"fmt"
	"log"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"bizconsole/internal/domain/automatch"
)

const fcmBatchLimit = 500

// multicastSender is the slice of the FCM client used here.
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client implements automatch.Messenger using Firebase Cloud Messaging.
// Tokens FCM reports as unregistered are remembered and skipped on later sends.
type Client struct {
	sender multicastSender

	mu      sync.Mutex
	dropped map[string]struct{}
}

var _ automatch.Messenger = (*Client)(nil)

// NewClient initializes a Firebase app and returns an FCM client.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return newClient(msgClient), nil
}

func newClient(sender multicastSender) *Client {
	return &Client{sender: sender, dropped: make(map[string]struct{})}
}

// SendMulticast sends a push notification to multiple device tokens in batches of 500.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	tokens = c.live(tokens)
	if len(tokens) == 0 {
		return nil
	}

	var totalSuccess, totalFailure int
	for _, batch := range chunkTokens(tokens, fcmBatchLimit) {
		msg := &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		}

		resp, err := c.sender.SendEachForMulticast(ctx, msg)
		if err != nil {
			return fmt.Errorf("failed to send FCM multicast: %w", err)
		}

		totalSuccess += resp.SuccessCount
		totalFailure += resp.FailureCount
		if resp.FailureCount > 0 {
			c.handleFailures(batch, resp)
		}
	}

	log.Printf("FCM multicast: %d success, %d failure", totalSuccess, totalFailure)
	return nil
}

func (c *Client) handleFailures(tokens []string, resp *messaging.BatchResponse) {
	for i, sendResp := range resp.Responses {
		if sendResp == nil || sendResp.Error == nil || i >= len(tokens) {
			continue
		}
		if messaging.IsUnregistered(sendResp.Error) || messaging.IsInvalidArgument(sendResp.Error) {
			log.Printf("Invalid FCM token at index %d, skipping it from now on: %v", i, sendResp.Error)
			c.drop(tokens[i])
		} else {
			log.Printf("FCM send error at index %d: %v", i, sendResp.Error)
		}
	}
}

func (c *Client) drop(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[token] = struct{}{}
}

func (c *Client) live(tokens []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, bad := c.dropped[t]; !bad && t != "" {
			out = append(out, t)
		}
	}
	return out
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := min(i+size, len(tokens))
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}
