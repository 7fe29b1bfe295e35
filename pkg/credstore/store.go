package credstore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Region layout. The offsets are fixed for compatibility with flash
// images written by earlier firmware revisions.
const (
	offSSIDLen   = 0
	offSSID      = 1
	offPassLen   = 100
	offPass      = 101
	offMarker    = 200 // 2 bytes, big-endian
	offSecretLen = 300
	offSecret    = 301

	// MaxSSIDLen and MaxPasswordLen bound the network credential fields.
	MaxSSIDLen     = 99
	MaxPasswordLen = 99

	// MaxSecretLen bounds the control secret.
	MaxSecretLen = 49
)

// ValidityMarker is written after all credential fields have been
// persisted; Load treats any other value as "no valid credentials".
const ValidityMarker uint16 = 0xAB12

// DefaultSecret is the control secret used when none has been stored.
const DefaultSecret = "1234"

// Store errors.
var (
	ErrSSIDTooLong     = errors.New("credstore: ssid exceeds 99 bytes")
	ErrPasswordTooLong = errors.New("credstore: password exceeds 99 bytes")
	ErrSecretTooLong   = errors.New("credstore: control secret exceeds 49 bytes")
	ErrSecretEmpty     = errors.New("credstore: control secret must not be empty")
)

// Credentials is a stored network credential pair.
type Credentials struct {
	SSID     string
	Password string
}

// Store persists network credentials and the control secret to a Flash
// region. The control secret is cached in memory so Secret never touches
// the flash on the hot path; the cache is primed by Open and refreshed
// by SaveSecret and ClearAll.
type Store struct {
	flash  Flash
	secret string
}

// Open creates a Store over the given flash region and loads the control
// secret. An absent or implausibly-sized secret falls back to
// DefaultSecret; a flash read fault is surfaced to the caller.
func Open(flash Flash) (*Store, error) {
	s := &Store{flash: flash, secret: DefaultSecret}

	var lenByte [1]byte
	if err := flash.ReadAt(lenByte[:], offSecretLen); err != nil {
		return nil, fmt.Errorf("credstore: read secret length: %w", err)
	}
	n := int(lenByte[0])
	if n == 0 || n > MaxSecretLen {
		return s, nil
	}

	buf := make([]byte, n)
	if err := flash.ReadAt(buf, offSecret); err != nil {
		return nil, fmt.Errorf("credstore: read secret: %w", err)
	}
	s.secret = string(buf)
	return s, nil
}

// Load reads the stored network credentials. It returns nil with no
// error when the validity marker does not match, which is how a crash
// mid-save is observed: no valid credentials rather than corrupt ones.
func (s *Store) Load() (*Credentials, error) {
	var marker [2]byte
	if err := s.flash.ReadAt(marker[:], offMarker); err != nil {
		return nil, fmt.Errorf("credstore: read marker: %w", err)
	}
	if binary.BigEndian.Uint16(marker[:]) != ValidityMarker {
		return nil, nil
	}

	ssid, err := s.readField(offSSIDLen, offSSID, MaxSSIDLen)
	if err != nil {
		return nil, err
	}
	password, err := s.readField(offPassLen, offPass, MaxPasswordLen)
	if err != nil {
		return nil, err
	}

	return &Credentials{SSID: ssid, Password: password}, nil
}

// Save persists a credential pair. All fields are rewritten and the
// validity marker is written last, so a fault before the final commit
// leaves the region observably invalid instead of half-written.
func (s *Store) Save(ssid, password string) error {
	if len(ssid) > MaxSSIDLen {
		return ErrSSIDTooLong
	}
	if len(password) > MaxPasswordLen {
		return ErrPasswordTooLong
	}

	// Invalidate first: a fault between here and the marker rewrite
	// must read back as "no credentials".
	if err := s.flash.WriteAt([]byte{0, 0}, offMarker); err != nil {
		return fmt.Errorf("credstore: clear marker: %w", err)
	}

	if err := s.writeField(offSSIDLen, offSSID, MaxSSIDLen, ssid); err != nil {
		return err
	}
	if err := s.writeField(offPassLen, offPass, MaxPasswordLen, password); err != nil {
		return err
	}

	// Preserve the current control secret alongside the credentials.
	if err := s.writeField(offSecretLen, offSecret, MaxSecretLen, s.secret); err != nil {
		return err
	}

	var marker [2]byte
	binary.BigEndian.PutUint16(marker[:], ValidityMarker)
	if err := s.flash.WriteAt(marker[:], offMarker); err != nil {
		return fmt.Errorf("credstore: write marker: %w", err)
	}

	if err := s.flash.Commit(); err != nil {
		return fmt.Errorf("credstore: commit: %w", err)
	}
	return nil
}

// Secret returns the current control secret. Never empty.
func (s *Store) Secret() string {
	return s.secret
}

// SaveSecret persists a new control secret and updates the cache.
func (s *Store) SaveSecret(secret string) error {
	if secret == "" {
		return ErrSecretEmpty
	}
	if len(secret) > MaxSecretLen {
		return ErrSecretTooLong
	}

	if err := s.writeField(offSecretLen, offSecret, MaxSecretLen, secret); err != nil {
		return err
	}
	if err := s.flash.Commit(); err != nil {
		return fmt.Errorf("credstore: commit: %w", err)
	}

	s.secret = secret
	return nil
}

// ClearAll zeroes the whole region and resets the cached secret to the
// default. It does not restart the device; that decision belongs to the
// calling flow.
func (s *Store) ClearAll() error {
	zero := make([]byte, RegionSize)
	if err := s.flash.WriteAt(zero, 0); err != nil {
		return fmt.Errorf("credstore: zero region: %w", err)
	}
	if err := s.flash.Commit(); err != nil {
		return fmt.Errorf("credstore: commit: %w", err)
	}

	s.secret = DefaultSecret
	return nil
}

func (s *Store) readField(lenOff, dataOff, max int) (string, error) {
	var lenByte [1]byte
	if err := s.flash.ReadAt(lenByte[:], lenOff); err != nil {
		return "", fmt.Errorf("credstore: read length at %d: %w", lenOff, err)
	}
	n := int(lenByte[0])
	if n == 0 {
		return "", nil
	}
	if n > max {
		// Length byte is out of range for the region; treat as empty
		// rather than reading into a neighboring field.
		return "", nil
	}

	buf := make([]byte, n)
	if err := s.flash.ReadAt(buf, dataOff); err != nil {
		return "", fmt.Errorf("credstore: read field at %d: %w", dataOff, err)
	}
	return string(buf), nil
}

func (s *Store) writeField(lenOff, dataOff, max int, value string) error {
	if err := s.flash.WriteAt([]byte{byte(len(value))}, lenOff); err != nil {
		return fmt.Errorf("credstore: write length at %d: %w", lenOff, err)
	}

	// Pad to the field width so stale bytes from a longer previous
	// value never survive.
	buf := make([]byte, max)
	copy(buf, value)
	if err := s.flash.WriteAt(buf, dataOff); err != nil {
		return fmt.Errorf("credstore: write field at %d: %w", dataOff, err)
	}
	return nil
}
