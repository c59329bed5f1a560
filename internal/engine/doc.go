// Package engine содержит чистые функции движка workflow.
//
// Включает:
//   - parser.go    — разбор определения workflow из JSON и структурные проверки
//   - template.go  — подстановка токенов {{a.b.c}} из контекста
//   - condition.go — вычисление условий фильтра по фиксированной грамматике
//   - context.go   — слияние выходов узлов в контекст выполнения
//
// Пакет не выполняет I/O и не хранит состояние: все функции
// детерминированы и безопасны для конкурентного вызова.
package engine
