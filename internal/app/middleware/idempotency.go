package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"booking-service/internal/app/commands"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

// IdempotencyStore remembers successful results per key.
// Reserve returns false when another request already holds the key. Release drops a reservation
// without a stored result so the client may retry after a failure.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	ErrRequestInFlight  = errors.New("middleware: request with this idempotency key is in progress")
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
)

func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			if key == "" {
				return nextFn(ctx, cmd)
			}
			if res, found, err := replay(ctx, store, codec, idCmd, key); err != nil || found {
				return res, err
			}
			reserved, err := store.Reserve(ctx, key)
			if err != nil {
				return nil, err
			}
			if !reserved {
				// the holder may have finished between Get and Reserve
				if res, found, err := replay(ctx, store, codec, idCmd, key); err != nil || found {
					return res, err
				}
				return nil, ErrRequestInFlight
			}

			result, err := nextFn(ctx, cmd)
			if err != nil {
				if relErr := store.Release(context.WithoutCancel(ctx), key); relErr != nil {
					return nil, errors.Join(err, relErr)
				}
				return nil, err
			}
			record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			// the command already took effect; a lost record only costs the replay
			if saveErr := store.Save(context.WithoutCancel(ctx), record); saveErr != nil {
				_ = store.Release(context.WithoutCancel(ctx), key)
			}
			return result, nil
		})
	}
}

func replay(ctx context.Context, store IdempotencyStore, codec ResultCodec, cmd IdempotentCommand, key string) (any, bool, error) {
	rec, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, true, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, true, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, true, err
	}
	return normalizePrototype(proto), true, nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
