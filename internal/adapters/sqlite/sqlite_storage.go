package sqlite

import (
	"context"
	"database/sql" // basic sql
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3" // additional driver for sqlite

	"github.com/dappnode/plumo-state-verifier/internal/application/domain"
)

// Implements ports.ResolutionStoragePort

type SQLiteStorage struct {
	DB *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite db: %w", err)
	}
	return &SQLiteStorage{DB: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.DB.Close()
}

func migrate(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trusted_blocks (
			number INTEGER PRIMARY KEY,
			hash TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			round BLOB,
			signers INTEGER NOT NULL,
			verified_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS verified_values (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			address TEXT NOT NULL,
			token TEXT,
			slot TEXT,
			block_hash TEXT NOT NULL,
			value BLOB,
			verified_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trusted_epoch ON trusted_blocks(epoch);`,
		`CREATE INDEX IF NOT EXISTS idx_values_address ON verified_values(address);`,
		`CREATE INDEX IF NOT EXISTS idx_values_block ON verified_values(block_hash);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Upsert = Insert or Update. If a record with the same primary key exists, it updates the existing record.
// If the record does not exist, it inserts a new record.

// UpsertTrustedBlock inserts or updates a trusted block. A block seen again (for example after a
// restart) keeps its row and gets its hash, round and signers refreshed.
func (s *SQLiteStorage) UpsertTrustedBlock(ctx context.Context, block *domain.TrustedBlock) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO trusted_blocks (number, hash, epoch, round, signers)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			hash=excluded.hash,
			round=excluded.round,
			signers=excluded.signers,
			verified_at=CURRENT_TIMESTAMP;`,
		block.Number, block.Hash.Hex(), uint64(block.Epoch), block.Round, block.Signers,
	)
	return err
}

// InsertVerifiedValue appends a verified value. token and slot are stored as NULL when nil.
func (s *SQLiteStorage) InsertVerifiedValue(ctx context.Context, address common.Address, token *common.Address, slot *common.Hash, blockHash common.Hash, value []byte) error {
	var tokenCol, slotCol *string
	if token != nil {
		t := token.Hex()
		tokenCol = &t
	}
	if slot != nil {
		sl := slot.Hex()
		slotCol = &sl
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO verified_values (address, token, slot, block_hash, value)
		VALUES (?, ?, ?, ?, ?);`,
		address.Hex(), tokenCol, slotCol, blockHash.Hex(), value,
	)
	return err
}

// VerifiedValues returns the values recorded for address, oldest first. The block number is
// taken from trusted_blocks when that block is still recorded.
func (s *SQLiteStorage) VerifiedValues(ctx context.Context, address common.Address) ([]domain.VerifiedRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT v.token, v.slot, v.block_hash, v.value, v.verified_at, b.number
		FROM verified_values v
		LEFT JOIN trusted_blocks b ON b.hash = v.block_hash
		WHERE v.address = ?
		ORDER BY v.id;`,
		address.Hex(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.VerifiedRecord
	for rows.Next() {
		var (
			token, slot sql.NullString
			blockHash   string
			number      sql.NullInt64
		)
		rec := domain.VerifiedRecord{Address: address}
		if err := rows.Scan(&token, &slot, &blockHash, &rec.Value, &rec.VerifiedAt, &number); err != nil {
			return nil, err
		}
		if token.Valid {
			t := common.HexToAddress(token.String)
			rec.Token = &t
		}
		if slot.Valid {
			sl := common.HexToHash(slot.String)
			rec.Slot = &sl
		}
		if number.Valid {
			n := uint64(number.Int64)
			rec.BlockNumber = &n
		}
		rec.BlockHash = common.HexToHash(blockHash)
		records = append(records, rec)
	}
	return records, rows.Err()
}
