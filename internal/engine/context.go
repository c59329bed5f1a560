package engine

// PayloadKey — ключ, содержимое которого поднимается на верхний уровень
// контекста после каждого узла.
const PayloadKey = "payload"

// NewData создаёт контекст выполнения из данных триггера.
// Возвращается копия верхнего уровня: payload вызывающего не меняется.
func NewData(payload map[string]any) map[string]any {
	data := make(map[string]any, len(payload))
	for k, v := range payload {
		data[k] = v
	}
	return data
}

// Merge возвращает новый контекст с выходом узла nodeID.
//
// Политика first-writer-wins на верхнем уровне:
//   - полный выход всегда доступен как data[nodeID];
//   - ключи data["payload"] (если это map) добавляются, только если их ещё нет;
//   - ключи выхода добавляются, только если их ещё нет.
//
// Данные триггера поднимаются раньше выхода узла: ключ payload
// считается записанным до любого узла.
//
// Исходный data не изменяется.
func Merge(data map[string]any, nodeID string, output map[string]any) map[string]any {
	merged := make(map[string]any, len(data)+len(output)+1)
	for k, v := range data {
		merged[k] = v
	}
	merged[nodeID] = output

	if payload, ok := data[PayloadKey].(map[string]any); ok {
		for k, v := range payload {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}

	for k, v := range output {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}

	return merged
}
