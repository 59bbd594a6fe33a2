package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-jobs-backend/config"
	"laundry-jobs-backend/internal/model"
)

// mockPushSender is a mock implementation of the PushSender interface.
type mockPushSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// fakeSubs is an in-memory SubscriptionStore.
type fakeSubs struct {
	mu      sync.Mutex
	subs    []model.PushSubscription
	deleted []string
}

func (f *fakeSubs) ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PushSubscription(nil), f.subs...), nil
}

func (f *fakeSubs) DeletePushSubscription(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

// recordingSender captures SMS deliveries.
type recordingSender struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	calls chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{calls: make(chan struct{}, 16)}
}

func (r *recordingSender) Send(ctx context.Context, contact string, kind Kind, payload Payload) error {
	r.mu.Lock()
	r.sent = append(r.sent, Message{Contact: contact, Kind: kind, Payload: payload})
	r.mu.Unlock()
	r.calls <- struct{}{}
	return r.err
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Notify(t *testing.T) {
	wp := NewWorkerPool(1, 1, nil, nil, time.Second)

	err := wp.Notify(context.Background(), "0917", KindLoadCompleted, Payload{"transactionId": "T-1"})
	require.NoError(t, err)

	select {
	case msg := <-wp.Jobs():
		assert.Equal(t, "0917", msg.Contact)
		assert.Equal(t, KindLoadCompleted, msg.Kind)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for message to be queued")
	}
}

func TestWorkerPool_NotifyQueueFull(t *testing.T) {
	wp := NewWorkerPool(1, 1, nil, nil, time.Second)

	require.NoError(t, wp.Notify(context.Background(), "a", KindDisposalWarning, nil))
	err := wp.Notify(context.Background(), "b", KindDisposalWarning, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestWorkerPool_NotifyAfterShutdown(t *testing.T) {
	wp := NewWorkerPool(1, 4, nil, nil, time.Second)
	wp.Start(context.Background())
	wp.Shutdown()

	err := wp.Notify(context.Background(), "a", KindLoadCompleted, nil)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestWorkerPool_DeliversSMSAndStaffPush(t *testing.T) {
	sms := newRecordingSender()
	subs := &fakeSubs{subs: []model.PushSubscription{
		{Endpoint: "https://example.com/push", P256DH: "k", Auth: "a"},
	}}

	var wg sync.WaitGroup
	wg.Add(1)
	staff := NewStaffBroadcaster(subs, &webpush.Options{})
	staff.sender = &mockPushSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			assert.Equal(t, "https://example.com/push", sub.Endpoint)
			var msg pushMessage
			assert.NoError(t, json.Unmarshal(payload, &msg))
			assert.Equal(t, "T-9", msg.TransactionID)
			assert.Equal(t, KindLoadCompleted, msg.Kind)
			return okResponse(http.StatusCreated), nil
		},
	}

	wp := NewWorkerPool(1, 4, sms, staff, time.Second)
	wp.Start(context.Background())

	require.NoError(t, wp.Notify(context.Background(), "09171234567", KindLoadCompleted,
		Payload{"transactionId": "T-9", "customerName": "Ana"}))
	wg.Wait()
	wp.Shutdown()

	require.Len(t, sms.sent, 1)
	assert.Equal(t, "09171234567", sms.sent[0].Contact)
}

func TestWorkerPool_DisposalWarningSkipsStaff(t *testing.T) {
	sms := newRecordingSender()
	pushes := 0
	staff := NewStaffBroadcaster(&fakeSubs{subs: []model.PushSubscription{{Endpoint: "e"}}}, &webpush.Options{})
	staff.sender = &mockPushSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			pushes++
			return okResponse(http.StatusCreated), nil
		},
	}

	wp := NewWorkerPool(1, 4, sms, staff, time.Second)
	wp.Start(context.Background())
	require.NoError(t, wp.Notify(context.Background(), "09171234567", KindDisposalWarning, Payload{"transactionId": "T-2"}))
	wp.Shutdown()

	assert.Len(t, sms.sent, 1)
	assert.Equal(t, 0, pushes)
}

func TestWorkerPool_SMSFailureIsLogged(t *testing.T) {
	sms := newRecordingSender()
	sms.err = errors.New("gateway down")

	wp := NewWorkerPool(1, 4, sms, nil, time.Second)
	wp.Start(context.Background())
	require.NoError(t, wp.Notify(context.Background(), "09171234567", KindDisposalWarning, Payload{"transactionId": "T-3"}))
	require.NoError(t, wp.Notify(context.Background(), "09171234568", KindDisposalWarning, Payload{"transactionId": "T-4"}))
	wp.Shutdown()

	assert.Len(t, sms.sent, 2, "a failed delivery must not stop later ones")
}

func TestStaffBroadcaster_DeletesExpiredSubscription(t *testing.T) {
	subs := &fakeSubs{subs: []model.PushSubscription{
		{Endpoint: "https://example.com/expired", P256DH: "k", Auth: "a"},
	}}
	staff := NewStaffBroadcaster(subs, &webpush.Options{})
	staff.sender = &mockPushSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			return okResponse(http.StatusGone), nil
		},
	}

	err := staff.Broadcast(context.Background(), KindLoadCompleted, Payload{"transactionId": "T-5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/expired"}, subs.deleted)
}

func TestSMSClient_Send(t *testing.T) {
	var got smsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewSMSClient(config.SMSConfig{
		GatewayURL:         server.URL,
		APIKey:             "secret",
		Sender:             "LAUNDRY",
		DefaultCountryCode: "63",
		Timeout:            time.Second,
	})
	require.NoError(t, err)

	err = client.Send(context.Background(), "0917 123 4567", KindLoadCompleted,
		Payload{"transactionId": "T-1", "customerName": "Ana", "storeName": "Suds"})
	require.NoError(t, err)

	assert.Equal(t, "+639171234567", got.To)
	assert.Equal(t, "LAUNDRY", got.From)
	assert.Equal(t, string(KindLoadCompleted), got.Tag)
	assert.Equal(t, "Hi Ana, your laundry (order T-1) is ready for pickup at Suds.", got.Message)
}

func TestSMSClient_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewSMSClient(config.SMSConfig{GatewayURL: server.URL, Timeout: time.Second})
	require.NoError(t, err)

	err = client.Send(context.Background(), "+639171234567", KindDisposalWarning, Payload{})
	assert.ErrorContains(t, err, "429")
}

func TestSMSClient_InvalidContact(t *testing.T) {
	client, err := NewSMSClient(config.SMSConfig{GatewayURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	err = client.Send(context.Background(), "not a number", KindDisposalWarning, Payload{})
	assert.Error(t, err)
}

func TestNewSMSClient_RequiresURL(t *testing.T) {
	_, err := NewSMSClient(config.SMSConfig{})
	assert.Error(t, err)
}
