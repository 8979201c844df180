package authz

import (
	"fmt"

	"github.com/quanghuy1242/auther-sub001/internal/models"
)

// Result is the uniform outcome every mutating operation of the core returns.
// Callers never see a raw fault from this subsystem, only structured outcomes.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Notice carries informational, non-fatal detail such as "grant already
	// existed"
	Notice string `json:"notice,omitempty"`
}

func ok() Result {
	return Result{Success: true}
}

func okNotice(notice string) Result {
	return Result{Success: true, Notice: notice}
}

func fail(format string, args ...interface{}) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// GrantResult is returned by grant operations
type GrantResult struct {
	Result
	Tuple *models.Tuple `json:"tuple,omitempty"`
}

// RevokeResult is returned by revoke operations. Warnings are advisory and
// never block the revocation; ScopedCount is populated when a cascade is
// required but not requested.
type RevokeResult struct {
	Result
	ScopedCount   int64    `json:"scopedCount,omitempty"`
	RemovedScoped int64    `json:"removedScoped,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// RelationUsage answers "how many tuples still reference this relation"
type RelationUsage struct {
	InUse bool  `json:"inUse"`
	Count int64 `json:"count"`
}
