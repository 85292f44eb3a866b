package ragdoc

import (
	"context"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "ragdoc"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Stats(ctx context.Context, client string) (int, error) {
	log := mw.log.With(
		zap.String("action", "stats"),
		zap.String("client", client),
	)

	count, err := mw.next.Stats(ctx, client)
	if err != nil {
		log.Error(err.Error())
		return 0, err
	}

	log.Info("stats retrieved", zap.Int("count", count))
	return count, nil
}

func (mw *loggingMiddleware) Search(ctx context.Context, client string, query string, k ...int) ([]Hit, error) {
	log := mw.log.With(
		zap.String("action", "search"),
		zap.String("client", client),
		zap.String("query", query),
	)

	if len(k) > 0 && k[0] > 0 {
		log = log.With(
			zap.Int("k", k[0]),
		)
	}

	hits, err := mw.next.Search(ctx, client, query, k...)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("chunks searched", zap.Int("count", len(hits)))
	return hits, nil
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, client string, filename string, contentB64 string) (int, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.String("client", client),
		zap.String("filename", filename),
		zap.Int("payload_size", len(contentB64)),
	)

	added, err := mw.next.Ingest(ctx, client, filename, contentB64)
	if err != nil {
		log.Error(err.Error())
		return 0, err
	}

	log.Info("document ingested", zap.Int("added", added))
	return added, nil
}

func (mw *loggingMiddleware) Ask(ctx context.Context, client string, question string, k ...int) (*Answer, error) {
	log := mw.log.With(
		zap.String("action", "ask"),
		zap.String("client", client),
		zap.String("question", question),
	)

	if len(k) > 0 && k[0] > 0 {
		log = log.With(
			zap.Int("k", k[0]),
		)
	}

	answer, err := mw.next.Ask(ctx, client, question, k...)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("question answered", zap.Int("sources", len(answer.Sources)))
	return answer, nil
}
