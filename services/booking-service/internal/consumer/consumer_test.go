package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/staffslots/libs/kafkax"
	"github.com/md-rashed-zaman/staffslots/libs/runtime"
	"github.com/md-rashed-zaman/staffslots/services/booking-service/internal/inbox"
)

func settingsMessage(value string) kafka.Message {
	meta := kafkax.EventMeta{EventID: "evt-1", EventType: TopicSettingsUpdated}
	return kafka.Message{Topic: TopicSettingsUpdated, Key: []byte("t1"), Value: []byte(value), Headers: meta.Headers()}
}

func TestHandleAppliesSettingsOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewWithReader(runtime.DiscardLogger(), mock, inbox.NewRepository(), nil, NewSettingsHandler(runtime.DiscardLogger()))
	msg := settingsMessage(`{
		"tenant_id": "t1",
		"timezone": "Europe/Berlin",
		"policy": {"allow_overlap": true, "max_overlaps": 2},
		"services": [{"id": "svc", "name": "Cut", "duration_minutes": 30}],
		"staff": [{"id": "s1", "name": "Ada"}]
	}`)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inbox_events").WithArgs("evt-1", TopicSettingsUpdated).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO tenant_settings").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO services").WithArgs("t1", "svc", "Cut", 30, []string{}, true).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO staff").WithArgs("t1", "s1", "Ada", true).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// Redelivery only touches the inbox.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inbox_events").WithArgs("evt-1", TopicSettingsUpdated).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	require.NoError(t, c.Handle(context.Background(), msg))
	require.NoError(t, c.Handle(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleDropsInvalidSettings(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewWithReader(runtime.DiscardLogger(), mock, inbox.NewRepository(), nil, NewSettingsHandler(runtime.DiscardLogger()))

	for _, payload := range []string{`not json`, `{"timezone":"UTC"}`, `{"tenant_id":"t1","timezone":"Nowhere/Else"}`} {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO inbox_events").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()
		require.NoError(t, c.Handle(context.Background(), settingsMessage(payload)))
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleRollsBackOnStoreError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := NewWithReader(runtime.DiscardLogger(), mock, inbox.NewRepository(), nil, NewSettingsHandler(runtime.DiscardLogger()))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inbox_events").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO tenant_settings").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = c.Handle(context.Background(), settingsMessage(`{"tenant_id":"t1"}`))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestRunCommitsAfterHandling(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	reader := &fakeReader{msgs: []kafka.Message{settingsMessage(`garbage`)}, cancel: cancel}
	c := NewWithReader(runtime.DiscardLogger(), mock, inbox.NewRepository(), reader, NewSettingsHandler(runtime.DiscardLogger()))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inbox_events").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	c.Run(ctx)
	require.Len(t, reader.committed, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
