package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow — сохранённое определение автоматизации.
//
// Workflow запускается webhook'ом: внешний вызов на /webhook/{webhook_id}
// ставит в очередь задание, воркер выполняет узлы из Definition.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty"`

	// WebhookID — уникальный идентификатор webhook-эндпоинта.
	WebhookID string `json:"webhook_id"`

	// Definition — узлы и связи (содержимое JSONB поля definition).
	Definition Definition `json:"definition"`

	// IsActive — неактивные workflow не выполняются.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Definition — "программа" workflow.
//
// Узлы выполняются строго в порядке списка Nodes.
// Connections хранятся для редактора и не влияют на порядок выполнения.
type Definition struct {
	// Nodes — упорядоченный список узлов.
	Nodes []NodeSpec `json:"nodes"`

	// Connections — связи между узлами (информационные).
	Connections []Connection `json:"connections,omitempty"`
}

// NodeSpec — определение одного узла.
type NodeSpec struct {
	// ID — уникальный в пределах workflow идентификатор узла.
	// Выход узла доступен в контексте по этому ключу.
	ID string `json:"id"`

	// Type — тег типа узла: "webhook", "http_request", "filter".
	Type string `json:"type"`

	// Config — конфигурация узла. Набор ключей зависит от типа.
	Config map[string]any `json:"config,omitempty"`
}

// Connection — связь между двумя узлами.
type Connection struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// NodeIDs возвращает id узлов в порядке определения.
func (d *Definition) NodeIDs() []string {
	ids := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// NewWorkflow создаёт активный workflow с новым ID.
// Если webhookID пустой, он генерируется.
func NewWorkflow(name, webhookID string, def Definition) *Workflow {
	now := time.Now().UTC()
	if webhookID == "" {
		webhookID = uuid.NewString()
	}
	return &Workflow{
		ID:         uuid.New(),
		Name:       name,
		WebhookID:  webhookID,
		Definition: def,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
