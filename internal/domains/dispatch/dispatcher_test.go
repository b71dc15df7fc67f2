package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/internal/domains/reply"
	"otme/go-client/internal/platform/ratelimiter"
	"otme/go-client/internal/testutil/stubnotary"
	"otme/go-client/internal/wallet"
	"otme/go-client/pkg/models"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type blockingTransport struct{}

func (blockingTransport) Submit(ctx context.Context, _ models.OperationRequest) (models.RawReply, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingSequencer struct{}

func (failingSequencer) NextRequestNumber(string, string) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingSequencer) SetRequestNumber(string, string, int64) error { return nil }

func TestDispatchNumbersAndIdentifiesRequests(t *testing.T) {
	tr := stubnotary.NewTransport().On(reply.OpCheckUser, stubnotary.Ok(stubnotary.AllOK))
	d := New(tr, wallet.NewMemory())

	raw, err := d.Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpCheckUser, map[string]string{"target_nym_id": "nym-bob"})
	require.NoError(t, err)
	assert.False(t, raw.IsEmpty())
	_, err = d.Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpCheckUser, map[string]string{"target_nym_id": "nym-bob"})
	require.NoError(t, err)

	reqs := tr.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, int64(1), reqs[0].RequestNumber())
	assert.Equal(t, int64(2), reqs[1].RequestNumber())
	assert.NotEqual(t, reqs[0].RequestID(), reqs[1].RequestID())
	target, _ := reqs[0].Param("target_nym_id")
	assert.Equal(t, "nym-bob", target)

	decoded, err := base58.Decode(reqs[0].RequestID())
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
	assert.Equal(t, RequestID(reqs[0]), reqs[0].RequestID())
}

func TestRequestIDIgnoresParamOrder(t *testing.T) {
	a := buildRequest(Call{NotaryID: "n", NymID: "u", Operation: "op", Params: map[string]string{"a": "1", "b": "2"}}, 5)
	b := buildRequest(Call{NotaryID: "n", NymID: "u", Operation: "op", Params: map[string]string{"b": "2", "a": "1"}}, 5)
	c := buildRequest(Call{NotaryID: "n", NymID: "u", Operation: "op", Params: map[string]string{"a": "1", "b": "3"}}, 5)
	assert.Equal(t, a.RequestID(), b.RequestID())
	assert.NotEqual(t, a.RequestID(), c.RequestID())
}

func TestDispatchRequestCarriesAccountAndCorrelation(t *testing.T) {
	tr := stubnotary.NewTransport().On(reply.OpWithdrawCash, stubnotary.Ok(stubnotary.AllOK))
	d := New(tr, wallet.NewMemory())

	sub, err := d.DispatchRequest(context.Background(), Call{
		NotaryID:      "notary-1",
		NymID:         "nym-alice",
		AccountID:     "acct-usd",
		AssetID:       "usd",
		Operation:     reply.OpWithdrawCash,
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "corr-1", sub.CorrelationID)
	assert.Equal(t, "acct-usd", sub.Request.AccountID())
	assert.Equal(t, "usd", sub.Request.AssetID())

	sub, err = d.DispatchRequest(context.Background(), Call{NotaryID: "notary-1", NymID: "nym-alice", Operation: reply.OpWithdrawCash})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.CorrelationID)
}

func TestDispatchEmptyReplyIsNotAnError(t *testing.T) {
	tr := stubnotary.NewTransport().On(reply.OpCheckUser, stubnotary.Empty())
	raw, err := New(tr, wallet.NewMemory()).Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpCheckUser, nil)
	require.NoError(t, err)
	assert.True(t, raw.IsEmpty())
}

func TestDispatchPreconditions(t *testing.T) {
	tr := stubnotary.NewTransport()
	tests := []struct {
		name string
		d    *Dispatcher
		call Call
	}{
		{name: "missing nym", d: New(tr, wallet.NewMemory()), call: Call{NotaryID: "n", Operation: "op"}},
		{name: "missing notary", d: New(tr, wallet.NewMemory()), call: Call{NymID: "u", Operation: "op"}},
		{name: "missing operation", d: New(tr, wallet.NewMemory()), call: Call{NotaryID: "n", NymID: "u"}},
		{name: "sequencer failure", d: New(tr, failingSequencer{}), call: Call{NotaryID: "n", NymID: "u", Operation: "op"}},
		{name: "unwired", d: New(nil, nil), call: Call{NotaryID: "n", NymID: "u", Operation: "op"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.d.DispatchRequest(context.Background(), tc.call)
			var te *contracts.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, contracts.TransportPrecondition, te.Kind)
			assert.False(t, te.MaybeDelivered())
		})
	}
	assert.Empty(t, tr.Requests(), "nothing may be sent when a precondition fails")
}

func TestDispatchTimeoutIsMaybeDelivered(t *testing.T) {
	d := New(blockingTransport{}, wallet.NewMemory(), WithTimeout(20*time.Millisecond))
	_, err := d.Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpSendTransfer, nil)
	var te *contracts.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, contracts.TransportTimeout, te.Kind)
	assert.True(t, te.MaybeDelivered())
	assert.Equal(t, reply.OpSendTransfer, te.Operation)
}

func TestDispatchTransportErrorsPassThrough(t *testing.T) {
	tr := stubnotary.NewTransport().On(reply.OpGetMint, stubnotary.Fail(contracts.TransportOutOfSync))
	_, err := New(tr, wallet.NewMemory()).Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpGetMint, nil)
	var te *contracts.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, contracts.TransportOutOfSync, te.Kind)
}

func TestDispatchRateLimitHonoursContext(t *testing.T) {
	tr := stubnotary.NewTransport().On(reply.OpCheckUser, stubnotary.Ok(stubnotary.AllOK))
	d := New(tr, wallet.NewMemory(), WithLimiter(ratelimiter.New(0.001, 1, time.Minute)))

	_, err := d.Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpCheckUser, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = d.Dispatch(ctx, "notary-1", "nym-alice", reply.OpCheckUser, nil)
	var te *contracts.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, contracts.TransportPrecondition, te.Kind)
	assert.Equal(t, 1, tr.Calls(reply.OpCheckUser))
}

func TestDispatchRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tr := stubnotary.NewTransport().
		On(reply.OpCheckUser, stubnotary.Ok(stubnotary.AllOK)).
		On(reply.OpGetMint, stubnotary.Fail(contracts.TransportUnreachable))
	d := New(tr, wallet.NewMemory(), WithTracer(tp.Tracer("test")))

	_, err := d.Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpCheckUser, nil)
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), "notary-1", "nym-alice", reply.OpGetMint, nil)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "otme.dispatch check_user", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "unreachable", spans[1].Status().Description)
}
