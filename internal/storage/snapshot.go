package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/shhac/bolt/internal/domain"
	apperrors "github.com/shhac/bolt/internal/errors"
)

// snapshotVersion is stamped into every blob. Blobs carrying any other
// version are rejected; there is no cross-version migration.
const snapshotVersion = 1

type snapshotEnvelope struct {
	Version   int              `json:"version"`
	Workspace domain.Workspace `json:"workspace"`
}

// EncodeSnapshot serializes a workspace into the opaque blob handed to
// save_state. Any workspace encodes, including one whose open collection was
// deleted, so that DecodeSnapshot(EncodeSnapshot(ws)) always yields ws.
func EncodeSnapshot(ws domain.Workspace) (string, error) {
	data, err := json.Marshal(snapshotEnvelope{
		Version:   snapshotVersion,
		Workspace: ws,
	})
	if err != nil {
		return "", fmt.Errorf("marshal workspace: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a blob produced by EncodeSnapshot. Any failure wraps
// ErrMalformedReply and no partial workspace is returned.
func DecodeSnapshot(blob string) (domain.Workspace, error) {
	if strings.TrimSpace(blob) == "" {
		return domain.Workspace{}, fmt.Errorf("%w: empty snapshot", apperrors.ErrMalformedReply)
	}
	if !gjson.Valid(blob) {
		return domain.Workspace{}, fmt.Errorf("%w: snapshot is not valid JSON", apperrors.ErrMalformedReply)
	}

	version := gjson.Get(blob, "version")
	if !version.Exists() || version.Type != gjson.Number || version.Int() != snapshotVersion {
		return domain.Workspace{}, fmt.Errorf("%w: unsupported snapshot version %s",
			apperrors.ErrMalformedReply, version.Raw)
	}

	if workspace := gjson.Get(blob, "workspace"); !workspace.IsObject() {
		return domain.Workspace{}, fmt.Errorf("%w: snapshot has no workspace object", apperrors.ErrMalformedReply)
	}

	// References inside the workspace are not checked: a dangling open
	// collection or an unknown page is stored as is and resolved by the
	// reader (see Workspace.ActiveRequest).
	var env snapshotEnvelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil {
		return domain.Workspace{}, fmt.Errorf("%w: unmarshal workspace: %v", apperrors.ErrMalformedReply, err)
	}

	return env.Workspace, nil
}
