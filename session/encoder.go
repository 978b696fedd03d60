package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const snapshotFormatVersionCurrent = 1

var errSnapshotCorrupt = errors.New("session snapshot corrupt")

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 0xFFFF {
		return errors.New("field too long")
	}
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(len(s)))
	buf.Write(lenBytes[:])
	buf.WriteString(s)
	return nil
}

func readString(buf *bytes.Reader) (string, error) {
	var lenBytes [2]byte
	if _, err := io.ReadFull(buf, lenBytes[:]); err != nil {
		return "", errSnapshotCorrupt
	}
	n := int(binary.BigEndian.Uint16(lenBytes[:]))
	if n == 0 {
		return "", nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(buf, out); err != nil {
		return "", errSnapshotCorrupt
	}
	return string(out), nil
}

// Encode serializes a snapshot into the versioned binary format.
func Encode(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(snapshotFormatVersionCurrent)

	if err := writeString(&buf, s.Token); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{
		s.Subject.ID,
		s.Subject.Email,
		s.Subject.Name,
		s.Subject.Role,
		s.Subject.OrganizationID,
		s.Subject.MemberRole,
	} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a snapshot previously produced by Encode. Unknown format
// versions and truncated blobs fail with a corrupt-snapshot error; the
// store treats that as "no session" rather than propagating it.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < 1 {
		return nil, errSnapshotCorrupt
	}
	if data[0] != snapshotFormatVersionCurrent {
		return nil, errSnapshotCorrupt
	}

	buf := bytes.NewReader(data[1:])
	s := &Snapshot{}

	var err error
	if s.Token, err = readString(buf); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, errSnapshotCorrupt
	}

	fields := []*string{
		&s.Subject.ID,
		&s.Subject.Email,
		&s.Subject.Name,
		&s.Subject.Role,
		&s.Subject.OrganizationID,
		&s.Subject.MemberRole,
	}
	for _, field := range fields {
		if *field, err = readString(buf); err != nil {
			return nil, err
		}
	}

	if buf.Len() != 0 {
		return nil, errSnapshotCorrupt
	}

	return s, nil
}
