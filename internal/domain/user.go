package domain

type UserID int64

// User — внешняя сущность сервиса идентификации, нам нужны только id и username.
type User struct {
	ID       UserID `db:"id"`
	Username string `db:"username"`
}
