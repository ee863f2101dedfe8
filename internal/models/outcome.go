package models

import (
    "time"
)

// ApplyResult 元数据写入的终态
type ApplyResult string

const (
    ApplyCreated   ApplyResult = "created"
    ApplyUpdated   ApplyResult = "updated"
    ApplyPartial   ApplyResult = "partial"
    ApplyFailed    ApplyResult = "failed"
    ApplySkipped   ApplyResult = "skipped"
)

// ApplyPhase 分阶段重试的阶段标识
type ApplyPhase string

const (
    PhaseCritical         ApplyPhase = "critical"
    PhaseSecondary        ApplyPhase = "secondary"
    PhaseNumericIsolation ApplyPhase = "numeric_isolation"
)

// FieldRejection 记录被丢弃的字段及原因
type FieldRejection struct {
    Key    string `json:"key"`
    Reason string `json:"reason"`
}

// PhaseOutcome 记录单个重试阶段的结果
type PhaseOutcome struct {
    Phase    ApplyPhase `json:"phase"`
    Fields   []string   `json:"fields"`
    Applied  []string   `json:"applied"`
    Error    string     `json:"error,omitempty"`
}

// ApplicationOutcome 记录一次 file+template 写入的完整结果
type ApplicationOutcome struct {
    FileID      string           `json:"fileId"`
    Scope       string           `json:"scope"`
    TemplateKey string           `json:"templateKey"`
    Result      ApplyResult      `json:"result"`
    Applied     []string         `json:"applied"`
    Rejected    []FieldRejection `json:"rejected,omitempty"`
    Phases      []PhaseOutcome   `json:"phases,omitempty"`
    Error       string           `json:"error,omitempty"`
}

// Succeeded reports whether any fields reached the store.
func (o *ApplicationOutcome) Succeeded() bool {
    switch o.Result {
    case ApplyCreated, ApplyUpdated, ApplyPartial:
        return true
    }
    return false
}

// AddressMatch 地址比对分类
type AddressMatch string

const (
    AddressExact        AddressMatch = "exact"
    AddressPartial      AddressMatch = "partial"
    AddressFullMismatch AddressMatch = "full_mismatch"
    AddressNotEvaluated AddressMatch = "not_evaluated"
)

// StageOutcome 记录级联中单个阶段的结果
type StageOutcome struct {
    TemplateKey string              `json:"templateKey"`
    Outcome     *ApplicationOutcome `json:"outcome,omitempty"`
    Error       string              `json:"error,omitempty"`
}

// FileOutcome 记录单个文件的处理结果
type FileOutcome struct {
    File           FileRef                `json:"file"`
    Classification DocumentClassification `json:"classification"`
    Base           *StageOutcome          `json:"base,omitempty"`
    TypeSpecific   *StageOutcome          `json:"typeSpecific,omitempty"`
    Address        *StageOutcome          `json:"address,omitempty"`
    AddressMatch   AddressMatch           `json:"addressMatch,omitempty"`
    Error          string                 `json:"error,omitempty"`
    StartedAt      time.Time              `json:"startedAt"`
    FinishedAt     time.Time              `json:"finishedAt"`
}

// Failed reports whether the file produced no usable result at all.
func (f *FileOutcome) Failed() bool {
    return f.Error != "" && f.Base == nil
}

// BatchOutcome 批处理的聚合结果
type BatchOutcome struct {
    BatchID    string        `json:"batchId"`
    Files      []FileOutcome `json:"files"`
    StartedAt  time.Time     `json:"startedAt"`
    FinishedAt time.Time     `json:"finishedAt"`
}
