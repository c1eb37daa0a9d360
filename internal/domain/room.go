package domain

// RoomKey — ключ broadcast-группы для пары: usernames по возрастанию через "_".
// Одинаков для обоих участников независимо от того, кто подключился.
func RoomKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// RoomKeyOf — то же, но по пользователям.
func RoomKeyOf(a, b User) string {
	return RoomKey(a.Username, b.Username)
}
