package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sharereg/pkg/domain"
	dErrors "sharereg/pkg/domain-errors"
)

func TestTransferLifecycle(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := id.NewShareholderID()
	tr := NewTransfer(id.NewTransferID(), id.TenantID(uuid.New()), &CreateTransferRequest{ToOwnerID: &to}, now)

	err := tr.CanPost()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "no lines")

	lines := []TransferLine{{LotID: id.NewLotID(), SharesTaken: 10}}
	require.NoError(t, tr.Apply(&UpdateTransferRequest{Lines: &lines}, now))
	require.NoError(t, tr.CanPost())

	actor := id.UserID(uuid.New())
	tr.MarkPosted(actor, now)
	assert.True(t, tr.IsPosted())
	require.NotNil(t, tr.PostedAt)
	assert.Equal(t, now, *tr.PostedAt)

	err = tr.CanPost()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	err = tr.Apply(&UpdateTransferRequest{Lines: &lines}, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCreateTransferRequest_Validate(t *testing.T) {
	owner := id.NewShareholderID()
	tests := []struct {
		name    string
		req     CreateTransferRequest
		wantErr bool
	}{
		{"empty draft", CreateTransferRequest{}, false},
		{"same owner both sides", CreateTransferRequest{FromOwnerID: &owner, ToOwnerID: &owner}, true},
		{"zero shares line", CreateTransferRequest{Lines: []TransferLine{{LotID: id.NewLotID()}}}, true},
		{"missing lot", CreateTransferRequest{Lines: []TransferLine{{SharesTaken: 5}}}, true},
		{"valid line", CreateTransferRequest{Lines: []TransferLine{{LotID: id.NewLotID(), SharesTaken: 5}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Normalize()
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}
