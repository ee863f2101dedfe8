package apply

import (
    "context"
    "errors"
    "sort"

    "github.com/wahiggins3/wealth-metadata-engine/internal/boxclient"
    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
    "github.com/wahiggins3/wealth-metadata-engine/internal/sanitize"
    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

// state 写入状态机的状态
type state int

const (
    stateStart state = iota
    stateUpdate
    statePhasedRetry
    stateDone
)

// Store 元数据存储的写入端
type Store interface {
    CreateInstance(ctx context.Context, fileID, scope, templateKey string, fields map[string]interface{}) error
    UpdateInstance(ctx context.Context, fileID, scope, templateKey string, ops []boxclient.PatchOp) error
}

// Applier 以 create-or-update 协议写入已清洗的元数据。
// 批量更新失败后分三个阶段重试，把失败定位到具体字段。
type Applier struct {
    store  Store
    logger logger.Logger
}

func NewApplier(store Store, log logger.Logger) *Applier {
    return &Applier{store: store, logger: log}
}

// Apply runs the create-or-update state machine for one file+template write.
// The outcome is always returned and is never collapsed into a single boolean.
func (a *Applier) Apply(ctx context.Context, fileID string, tpl *models.MetadataTemplate, meta models.FieldMap) *models.ApplicationOutcome {
    outcome := &models.ApplicationOutcome{
        FileID:      fileID,
        Scope:       tpl.Scope,
        TemplateKey: tpl.TemplateKey,
    }

    if len(meta) == 0 {
        outcome.Result = models.ApplySkipped
        return outcome
    }

    wire := wireValues(tpl, meta)
    current := stateStart

    for current != stateDone {
        switch current {
        case stateStart:
            err := a.store.CreateInstance(ctx, fileID, tpl.Scope, tpl.TemplateKey, wire)
            switch {
            case err == nil:
                outcome.Result = models.ApplyCreated
                outcome.Applied = sortedKeys(wire)
                current = stateDone
            case errors.Is(err, boxclient.ErrConflict):
                // 实例已存在是预期情况，转入更新
                current = stateUpdate
            default:
                outcome.Result = models.ApplyFailed
                outcome.Error = err.Error()
                current = stateDone
            }

        case stateUpdate:
            ops := patchOps(wire, sortedKeys(wire))
            if err := a.store.UpdateInstance(ctx, fileID, tpl.Scope, tpl.TemplateKey, ops); err != nil {
                a.logger.Warn("Bulk metadata update failed, entering phased retry",
                    logger.String("fileId", fileID),
                    logger.String("template", tpl.TemplateKey),
                    logger.Error(err),
                )
                current = statePhasedRetry
                continue
            }
            outcome.Result = models.ApplyUpdated
            outcome.Applied = sortedKeys(wire)
            current = stateDone

        case statePhasedRetry:
            a.phasedRetry(ctx, fileID, tpl, wire, outcome)
            current = stateDone
        }
    }

    return outcome
}

// phasedRetry 分三个阶段应用字段：关键字段、其余非数值字段、逐个数值字段。
// 阶段失败只记录，不中断后续阶段。
func (a *Applier) phasedRetry(ctx context.Context, fileID string, tpl *models.MetadataTemplate, wire map[string]interface{}, outcome *models.ApplicationOutcome) {
    types := tpl.FieldTypes()

    critical := make([]string, 0, len(tpl.CriticalKeys))
    for _, key := range tpl.CriticalKeys {
        if _, ok := wire[key]; ok {
            critical = append(critical, key)
        }
    }

    var secondary, numeric []string
    criticalSet := make(map[string]struct{}, len(critical))
    for _, k := range critical {
        criticalSet[k] = struct{}{}
    }
    for _, key := range sortedKeys(wire) {
        if _, ok := criticalSet[key]; ok {
            continue
        }
        if types[key] == models.FieldTypeFloat {
            numeric = append(numeric, key)
        } else {
            secondary = append(secondary, key)
        }
    }

    criticalOK := true
    if len(critical) > 0 {
        criticalOK = a.runPhase(ctx, fileID, tpl, wire, models.PhaseCritical, critical, outcome)
    }

    // 次级字段仅在关键阶段成功后尝试
    if criticalOK && len(secondary) > 0 {
        a.runPhase(ctx, fileID, tpl, wire, models.PhaseSecondary, secondary, outcome)
    }

    // 数值字段逐个写入，单个坏值不拖累其余字段
    for _, key := range numeric {
        a.runPhase(ctx, fileID, tpl, wire, models.PhaseNumericIsolation, []string{key}, outcome)
    }

    switch {
    case len(outcome.Applied) == len(wire):
        outcome.Result = models.ApplyUpdated
    case len(outcome.Applied) > 0:
        outcome.Result = models.ApplyPartial
    default:
        outcome.Result = models.ApplyFailed
    }
}

func (a *Applier) runPhase(ctx context.Context, fileID string, tpl *models.MetadataTemplate, wire map[string]interface{}, phase models.ApplyPhase, keys []string, outcome *models.ApplicationOutcome) bool {
    ops := patchOps(wire, keys)
    result := models.PhaseOutcome{Phase: phase, Fields: keys}

    if err := a.store.UpdateInstance(ctx, fileID, tpl.Scope, tpl.TemplateKey, ops); err != nil {
        result.Error = err.Error()
        outcome.Phases = append(outcome.Phases, result)
        a.logger.Warn("Phase application failed",
            logger.String("fileId", fileID),
            logger.String("template", tpl.TemplateKey),
            logger.String("phase", string(phase)),
            logger.Error(err),
        )
        return false
    }

    result.Applied = keys
    outcome.Phases = append(outcome.Phases, result)
    outcome.Applied = append(outcome.Applied, keys...)
    return true
}

// wireValues 把清洗后的规范值转换为存储端的线格式。
// 日期从 YYYY-MM-DD 扩展为 RFC3339，其余类型原样传递。
func wireValues(tpl *models.MetadataTemplate, meta models.FieldMap) map[string]interface{} {
    types := tpl.FieldTypes()
    out := make(map[string]interface{}, len(meta))
    for key, value := range meta {
        if types[key] == models.FieldTypeDate {
            if s, ok := value.(string); ok && len(s) == len(sanitize.DateLayout) {
                out[key] = s + "T00:00:00Z"
                continue
            }
        }
        out[key] = value
    }
    return out
}

func patchOps(wire map[string]interface{}, keys []string) []boxclient.PatchOp {
    ops := make([]boxclient.PatchOp, 0, len(keys))
    for _, key := range keys {
        ops = append(ops, boxclient.AddOp(key, wire[key]))
    }
    return ops
}

func sortedKeys(m map[string]interface{}) []string {
    keys := make([]string, 0, len(m))
    for k := range m {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    return keys
}
