package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Benny93/ninmem-go/internal/model"
	"github.com/Benny93/ninmem-go/internal/storage"
)

// LoadInput reads the input bundle from store, fetching the documents
// concurrently. Missing optional documents decode to empty collections.
func LoadInput(ctx context.Context, store storage.Store, logger *slog.Logger) (*model.GraphInput, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	keys := model.InputKeys()
	docs := make([][]byte, len(keys))

	eg, ctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		eg.Go(func() error {
			data, err := store.Get(ctx, key)
			if errors.Is(err, storage.ErrNotFound) && model.OptionalInputKey(key) {
				logger.Debug("optional input document missing", "key", key)
				return nil
			}
			if err != nil {
				return fmt.Errorf("loading %s: %w", key, err)
			}
			docs[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	input := &model.GraphInput{}
	for i, key := range keys {
		if docs[i] == nil {
			continue
		}
		if err := decodeInput(input, key, docs[i], logger); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", key, err)
		}
	}
	return input, nil
}

func decodeInput(input *model.GraphInput, key string, data []byte, logger *slog.Logger) error {
	switch key {
	case model.KeyNatureAreas:
		return json.Unmarshal(data, &input.NatureAreas)
	case model.KeyNatureAreaRedlistCategories:
		return json.Unmarshal(data, &input.NatureAreaRedlistCategories)
	case model.KeyNatureAreaRedlistThemes:
		return json.Unmarshal(data, &input.NatureAreaRedlistThemes)
	case model.KeyNatureAreaGeographicalAreaData:
		return json.Unmarshal(data, &input.NatureAreaGeographicalAreaData)
	case model.KeyTaxons:
		return json.Unmarshal(data, &input.Taxons)
	case model.KeyNatureAreaVariables:
		return json.Unmarshal(data, &input.NatureAreaVariables)
	case model.KeyTaxonTraits:
		return json.Unmarshal(data, &input.TaxonTraits)
	case model.KeyCodeTree:
		root, orphans, err := model.DecodeCodeTree(data)
		if err != nil {
			return err
		}
		for _, code := range orphans {
			logger.Debug("code tree parent missing", "code", code)
		}
		input.CodeTree = root
		return nil
	}
	return fmt.Errorf("unknown input key %q", key)
}
