package source

import (
	"context"
	"log/slog"

	"github.com/Jacob-Makopo/FileWhatwhat/runner"
)

// Producer feeds a Reader into a runner's source stage.
type Producer struct {
	reader Reader
	runner *runner.Runner
}

func NewProducer(path string, r *runner.Runner, logger *slog.Logger) (*Producer, error) {
	reader, err := NewReader(path, logger)
	if err != nil {
		return nil, err
	}
	producer := &Producer{reader: reader, runner: r}
	r.AddStage("source", producer.run)
	return producer, nil
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseSource()
	return p.reader.Stream(ctx, p.runner.SourceWriter())
}
