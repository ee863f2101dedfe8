package handlers

import (
	"github.com/wahiggins3/wealth-metadata-engine/internal/service/pipeline"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/queue"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/storage"
)

type Handlers struct {
	Metadata *MetadataHandler
}

func NewHandlers(
	processor pipeline.Processor,
	q queue.Queue,
	archive storage.Archive,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Metadata: NewMetadataHandler(processor, q, archive, logger),
	}
}
