package eventlog

import (
	"wormhole-tracker/internal/errkind"
)

func storageFatal(op string, err error) error {
	return errkind.Wrap(op, errkind.StorageFatal, err)
}

func storageTransient(op string, err error) error {
	return errkind.Wrap(op, errkind.StorageTransient, err)
}

func payloadSerialization(op string, err error) error {
	return errkind.Wrap(op, errkind.PayloadSerialization, err)
}

// ErrCharacterIDOverflow is returned when a character ID does not fit in
// the signed 64-bit column the event log stores it in.
var ErrCharacterIDOverflow = errkind.New("eventlog", errkind.StorageFatal, "character id overflows signed 64-bit column")
