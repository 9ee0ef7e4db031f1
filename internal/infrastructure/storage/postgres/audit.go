package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"stockcore/internal/domain/audit"
)

// CompressionAlgo specifies the compression applied to a stored snapshot.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// Compile-time check that AuditService implements audit.Recorder.
var _ audit.Recorder = (*AuditService)(nil)

// AuditService persists audit entries into sys_audit. Document snapshots are
// JSON, zstd-compressed above a size threshold; they are write-mostly and
// only decompressed by audit tooling.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record implements audit.Recorder. Runs on the caller's transaction, so an
// aborted approval leaves no audit trace.
func (s *AuditService) Record(ctx context.Context, entry audit.Entry) error {
	var (
		snapshot   []byte
		compressed []byte
		algo       = CompressionNone
		err        error
	)

	if entry.Snapshot != nil {
		snapshot, err = json.Marshal(entry.Snapshot)
		if err != nil {
			return fmt.Errorf("marshal audit snapshot: %w", err)
		}
		if len(snapshot) > s.compressThreshold {
			compressed = s.encoder.EncodeAll(snapshot, nil)
			snapshot = nil
			algo = CompressionZstd
		}
	}

	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, actor_id,
			snapshot, snapshot_compressed, compression_algo, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.ActorID,
		snapshot, compressed, algo, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Snapshot returns the decompressed snapshot of one audit entry.
func (s *AuditService) Snapshot(ctx context.Context, entryID any) (json.RawMessage, error) {
	querier := s.txManager.GetQuerier(ctx)

	var (
		snapshot   []byte
		compressed []byte
		algo       CompressionAlgo
	)
	err := querier.QueryRow(ctx, `
		SELECT snapshot, snapshot_compressed, compression_algo
		FROM sys_audit WHERE id = $1
	`, entryID).Scan(&snapshot, &compressed, &algo)
	if err != nil {
		return nil, fmt.Errorf("load audit entry: %w", err)
	}

	if algo == CompressionZstd {
		decoded, err := s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress audit snapshot: %w", err)
		}
		return decoded, nil
	}
	return snapshot, nil
}

// Close releases compressor resources.
func (s *AuditService) Close() {
	s.encoder.Close()
	s.decoder.Close()
}
