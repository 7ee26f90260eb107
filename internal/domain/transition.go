package domain

import "fmt"

// TransitionRule: решение таблицы переходов для пары статусов.
type TransitionRule int

const (
	// TransitionAllowed: переход разрешён.
	TransitionAllowed TransitionRule = iota + 1
	// TransitionTerminal: текущий статус терминальный.
	TransitionTerminal
	// TransitionShippedOnlyDelivered: из shipped можно только в delivered.
	TransitionShippedOnlyDelivered
	// TransitionSkippedStep: delivered без shipped.
	TransitionSkippedStep
	// TransitionBackward: движение назад по основному пути.
	TransitionBackward
)

type statusPair struct {
	from OrderStatus
	to   OrderStatus
}

// Пары с одинаковым статусом нужны для смены адреса без смены статуса.
var transitionTable = map[statusPair]TransitionRule{
	{OrderStatusPending, OrderStatusPending}:    TransitionAllowed,
	{OrderStatusPending, OrderStatusProcessing}: TransitionAllowed,
	{OrderStatusPending, OrderStatusShipped}:    TransitionAllowed,
	{OrderStatusPending, OrderStatusDelivered}:  TransitionSkippedStep,
	{OrderStatusPending, OrderStatusCancelled}:  TransitionAllowed,

	{OrderStatusProcessing, OrderStatusPending}:    TransitionBackward,
	{OrderStatusProcessing, OrderStatusProcessing}: TransitionAllowed,
	{OrderStatusProcessing, OrderStatusShipped}:    TransitionAllowed,
	{OrderStatusProcessing, OrderStatusDelivered}:  TransitionSkippedStep,
	{OrderStatusProcessing, OrderStatusCancelled}:  TransitionAllowed,

	{OrderStatusShipped, OrderStatusPending}:    TransitionShippedOnlyDelivered,
	{OrderStatusShipped, OrderStatusProcessing}: TransitionShippedOnlyDelivered,
	{OrderStatusShipped, OrderStatusShipped}:    TransitionShippedOnlyDelivered,
	{OrderStatusShipped, OrderStatusDelivered}:  TransitionAllowed,
	{OrderStatusShipped, OrderStatusCancelled}:  TransitionShippedOnlyDelivered,

	{OrderStatusDelivered, OrderStatusPending}:    TransitionTerminal,
	{OrderStatusDelivered, OrderStatusProcessing}: TransitionTerminal,
	{OrderStatusDelivered, OrderStatusShipped}:    TransitionTerminal,
	{OrderStatusDelivered, OrderStatusDelivered}:  TransitionTerminal,
	{OrderStatusDelivered, OrderStatusCancelled}:  TransitionTerminal,

	{OrderStatusCancelled, OrderStatusPending}:    TransitionTerminal,
	{OrderStatusCancelled, OrderStatusProcessing}: TransitionTerminal,
	{OrderStatusCancelled, OrderStatusShipped}:    TransitionTerminal,
	{OrderStatusCancelled, OrderStatusDelivered}:  TransitionTerminal,
	{OrderStatusCancelled, OrderStatusCancelled}:  TransitionTerminal,
}

// LookupTransition возвращает правило для пары статусов.
func LookupTransition(from, to OrderStatus) (TransitionRule, bool) {
	rule, ok := transitionTable[statusPair{from: from, to: to}]
	return rule, ok
}

// CheckTransition возвращает nil для разрешённого перехода или *TransitionError.
func CheckTransition(from, to OrderStatus) error {
	rule, ok := LookupTransition(from, to)
	if !ok {
		return &TransitionError{From: from, To: to, cause: ErrUnknownOrderStatus}
	}

	switch rule {
	case TransitionAllowed:
		return nil
	case TransitionTerminal:
		return &TransitionError{
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("Order is %s. No further changes allowed.", from.Title()),
			cause:  ErrIllegalTransition,
		}
	case TransitionShippedOnlyDelivered:
		return &TransitionError{
			From:   from,
			To:     to,
			Reason: "Can only be updated to delivered.",
			cause:  ErrIllegalTransition,
		}
	case TransitionSkippedStep:
		return &TransitionError{From: from, To: to, Reason: ErrSkippedStep.Error(), cause: ErrSkippedStep}
	case TransitionBackward:
		return &TransitionError{
			From:   from,
			To:     to,
			Reason: fmt.Sprintf("Order cannot move back from %s to %s.", from.Title(), to.Title()),
			cause:  ErrIllegalTransition,
		}
	default:
		return &TransitionError{From: from, To: to, cause: ErrIllegalTransition}
	}
}

// CheckAddressChange разрешает смену адреса только для неотгруженного заказа.
// to: статус, в котором заказ окажется после запроса.
func CheckAddressChange(from, to OrderStatus) error {
	if to.Mutable() {
		return nil
	}
	return &TransitionError{
		From:   from,
		To:     to,
		Reason: fmt.Sprintf("Order is %s. Shipping address can no longer be changed.", to.Title()),
		cause:  ErrIllegalTransition,
	}
}
