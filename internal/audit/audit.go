// internal/audit/audit.go
package audit

import (
	"context"
	"errors"
	"time"
)

// Summary - jeden wpis dziennika po zakończonym przebiegu synchronizacji.
type Summary struct {
	Source      string    `json:"source"`
	Endpoint    string    `json:"endpoint"`
	OperationID string    `json:"operationId"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Failed      int       `json:"failed"`
}

type Sink interface {
	Record(ctx context.Context, s Summary) error
}

// Store - trwały dziennik (tabela / kolekcja audit_logs).
type Store interface {
	AppendAudit(ctx context.Context, s Summary) error
}

type storeSink struct{ store Store }

func NewStoreSink(store Store) Sink { return storeSink{store: store} }

func (s storeSink) Record(ctx context.Context, sum Summary) error {
	return s.store.AppendAudit(ctx, sum)
}

// Multi zapisuje do wszystkich sinków; błąd jednego nie zatrzymuje pozostałych.
type Multi []Sink

func (m Multi) Record(ctx context.Context, s Summary) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nop struct{}

func (nop) Record(context.Context, Summary) error { return nil }

// Nop - gdy dziennik nie jest skonfigurowany.
var Nop Sink = nop{}
