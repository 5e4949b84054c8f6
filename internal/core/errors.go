package core

import "errors"

// Ошибки протокола обмена. Сервисный слой сопоставляет их
// с HTTP-статусами через errors.Is
var (
	// ErrNotFound — слот или предложение обмена не существует
	ErrNotFound = errors.New("запись не найдена")
	// ErrUnauthorized — операцию выполняет не тот пользователь
	ErrUnauthorized = errors.New("нет прав на эту операцию")
	// ErrInvalidRequest — запрос семантически некорректен
	// (например, обмен с самим собой)
	ErrInvalidRequest = errors.New("некорректный запрос")
	// ErrInvalidState — слот не в том статусе, который требуется операции
	ErrInvalidState = errors.New("слот не в подходящем статусе")
	// ErrInvalidTransition — недопустимый переход статуса
	// (слот заблокирован обменом или целевой статус запрещен)
	ErrInvalidTransition = errors.New("недопустимая смена статуса")
	// ErrAlreadyActioned — предложение обмена уже обработано
	ErrAlreadyActioned = errors.New("предложение уже обработано")
	// ErrTransactionFailed — транзакция не зафиксировалась;
	// ни одно из изменений не применено
	ErrTransactionFailed = errors.New("транзакция не выполнена")
)
