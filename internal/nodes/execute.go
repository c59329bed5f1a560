package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/automateos/internal/domain"
)

// SafeExecute выполняет узел и нормализует результат.
//
// *domain.NodeExecutionError возвращается как есть. Любая другая ошибка
// или panic оборачивается в NodeExecutionError с исходным текстом в
// details.original_error. При успехе возвращается конверт NodeResult.
func SafeExecute(ctx context.Context, node Node, input map[string]any) (result *domain.NodeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = wrapError(node, fmt.Errorf("panic: %v", r))
		}
	}()

	output, err := node.Execute(ctx, input)
	if err != nil {
		return nil, wrapError(node, err)
	}
	if output == nil {
		output = map[string]any{}
	}

	return &domain.NodeResult{
		NodeID:     node.ID(),
		NodeType:   node.Type(),
		Status:     domain.NodeStatusSuccess,
		Data:       output,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

func wrapError(node Node, err error) *domain.NodeExecutionError {
	var nodeErr *domain.NodeExecutionError
	if errors.As(err, &nodeErr) {
		return nodeErr
	}

	return &domain.NodeExecutionError{
		NodeID:   node.ID(),
		NodeType: node.Type(),
		Message:  fmt.Sprintf("Unexpected error in node %s: %v", node.ID(), err),
		Details:  map[string]any{"original_error": err.Error()},
		Err:      err,
	}
}
