package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Byte-logger sink (spec.md §6 "data_log_enabled",
 *		"Persisted state": "optional binary data log (not a
 *		documented format; treat as append-only opaque)").
 *
 * Description:	Every write is tagged with a session UUID (new per
 *		CONNECT) so multiple calls logged to the same file can be
 *		told apart, plus a direction byte and a wall-clock
 *		millisecond timestamp. No attempt is made to make the
 *		format self-describing beyond that; spec.md explicitly
 *		leaves it opaque.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DataLogDirection tags which way logged bytes moved.
type DataLogDirection byte

const (
	LogSerialToTelnet DataLogDirection = 0
	LogTelnetToSerial DataLogDirection = 1
)

// DataLog appends length-prefixed records to a single opaque file.
type DataLog struct {
	mu   sync.Mutex
	f    *os.File
	sess uuid.UUID
}

// OpenDataLog opens (creating if needed) the append-only log at path.
func OpenDataLog(path string) (*DataLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &DataLog{f: f, sess: uuid.New()}, nil
}

// NewSession starts tagging subsequent records with a freshly generated
// session UUID (called on CONNECT).
func (d *DataLog) NewSession() {
	d.mu.Lock()
	d.sess = uuid.New()
	d.mu.Unlock()
}

// Append writes one record: 16-byte session UUID, 1-byte direction,
// 8-byte millisecond timestamp, 4-byte length, payload.
func (d *DataLog) Append(dir DataLogDirection, payload []byte) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var header [29]byte
	copy(header[0:16], d.sess[:])
	header[16] = byte(dir)
	binary.BigEndian.PutUint64(header[17:25], uint64(time.Now().UnixMilli()))
	binary.BigEndian.PutUint32(header[25:29], uint32(len(payload)))

	if _, err := d.f.Write(header[:]); err != nil {
		return err
	}
	_, err := d.f.Write(payload)
	return err
}

// Close flushes and closes the log file.
func (d *DataLog) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	return d.f.Close()
}
