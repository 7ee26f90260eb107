package domain

import (
	"context"
	"time"
)

// UnitOfWork выполняет функцию в одной транзакции: либо всё применяется, либо ничего.
// Конфликт версий при записи возвращается как ErrVersionConflict.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx: набор репозиториев, привязанных к одной транзакции.
type Tx interface {
	// LockGroup сериализует изменения внутри группы флага до конца транзакции.
	LockGroup(ctx context.Context, key string) error
	Products() ProductRepository
	Images() ImageRepository
	Addresses() AddressRepository
	Carts() CartRepository
	Orders() OrderRepository
	Outbox() OutboxWriter
}

// ProductRepository описывает доступ к товарам.
type ProductRepository interface {
	// Create сохраняет новый товар с версией 0.
	Create(ctx context.Context, p Product) error
	// Get возвращает товар, в том числе мягко удалённый, или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// GetMany возвращает найденные товары; отсутствующие просто пропускаются.
	GetMany(ctx context.Context, ids []string) (map[string]Product, error)
	// Save записывает товар, если версия не изменилась, и увеличивает её.
	Save(ctx context.Context, p Product) error
}

// ImageRepository описывает доступ к изображениям товаров.
type ImageRepository interface {
	Create(ctx context.Context, img ProductImage) error
	Get(ctx context.Context, id string) (ProductImage, error)
	ListByProduct(ctx context.Context, productID string) ([]ProductImage, error)
	SetMain(ctx context.Context, id string, isMain bool) error
	Delete(ctx context.Context, id string) error
	// MainURLs возвращает URL главных изображений по товарам.
	MainURLs(ctx context.Context, productIDs []string) (map[string]string, error)
}

// AddressRepository описывает доступ к адресам пользователей.
type AddressRepository interface {
	Create(ctx context.Context, a Address) error
	// Get возвращает адрес пользователя или ErrAddressNotFound, если адрес чужой.
	Get(ctx context.Context, userID, id string) (Address, error)
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	Update(ctx context.Context, a Address) error
	SetDefault(ctx context.Context, id string, isDefault bool) error
	Delete(ctx context.Context, userID, id string) error
}

// CartRepository описывает доступ к корзинам. Отсутствующая корзина читается как пустая.
type CartRepository interface {
	Get(ctx context.Context, userID string) (Cart, error)
	Save(ctx context.Context, cart Cart) error
	RemoveLines(ctx context.Context, userID string, productIDs []string) error
	Clear(ctx context.Context, userID string) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями и журналом.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save применяет изменения статуса и адреса с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
	// AppendMilestone добавляет запись в журнал статусов.
	AppendMilestone(ctx context.Context, orderID string, m Milestone) error
}

// OutboxWriter ставит событие в outbox в рамках текущей транзакции.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	OutboxWriter
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, statusCode int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, statusCode int) error
	// Release удаляет незавершённую (processing) запись, чтобы повтор с тем же ключом
	// выполнил запрос заново. Завершённые и отсутствующие записи не трогает.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
