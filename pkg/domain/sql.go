package domain

import (
	"database/sql/driver"

	"github.com/google/uuid"
)

// SQL scanning delegates to uuid.UUID so typed IDs map directly onto uuid
// columns through sqlx.

func (id TenantID) Value() (driver.Value, error)      { return uuid.UUID(id).Value() }
func (id UserID) Value() (driver.Value, error)        { return uuid.UUID(id).Value() }
func (id ShareholderID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id LotID) Value() (driver.Value, error)         { return uuid.UUID(id).Value() }
func (id TransferID) Value() (driver.Value, error)    { return uuid.UUID(id).Value() }
func (id MeetingID) Value() (driver.Value, error)     { return uuid.UUID(id).Value() }
func (id MotionID) Value() (driver.Value, error)      { return uuid.UUID(id).Value() }
func (id VoteID) Value() (driver.Value, error)        { return uuid.UUID(id).Value() }
func (id ProxyID) Value() (driver.Value, error)       { return uuid.UUID(id).Value() }

func (id *TenantID) Scan(src any) error      { return (*uuid.UUID)(id).Scan(src) }
func (id *UserID) Scan(src any) error        { return (*uuid.UUID)(id).Scan(src) }
func (id *ShareholderID) Scan(src any) error { return (*uuid.UUID)(id).Scan(src) }
func (id *LotID) Scan(src any) error         { return (*uuid.UUID)(id).Scan(src) }
func (id *TransferID) Scan(src any) error    { return (*uuid.UUID)(id).Scan(src) }
func (id *MeetingID) Scan(src any) error     { return (*uuid.UUID)(id).Scan(src) }
func (id *MotionID) Scan(src any) error      { return (*uuid.UUID)(id).Scan(src) }
func (id *VoteID) Scan(src any) error        { return (*uuid.UUID)(id).Scan(src) }
func (id *ProxyID) Scan(src any) error       { return (*uuid.UUID)(id).Scan(src) }
