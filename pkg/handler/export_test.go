package handler

import "time"

var (
	SanitizeRecord = sanitizeRecord
	CoerceRecord   = coerceRecord
)

func (x *BigQuery) SetNow(f func() time.Time) { x.now = f }
func (x *Storage) SetNow(f func() time.Time)  { x.now = f }
func (x *Tasks) SetNow(f func() time.Time)    { x.now = f }
