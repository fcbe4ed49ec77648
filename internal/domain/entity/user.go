package entity

// SessionState состояние чата в диалоге
type SessionState string

const (
	StateMainMenu   SessionState = "main_menu"  // В главном меню
	StateProcessing SessionState = "processing" // Есть задания в обработке
)

// Session представляет чат пользователя бота
type Session struct {
	ChatID  int64        // Telegram Chat ID
	State   SessionState // Текущее состояние
	Pending int          // Сколько заданий ждут результата
}

// NewSession создаёт сессию с начальным состоянием
func NewSession(chatID int64) *Session {
	return &Session{
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// BeginJob отмечает, что в очередь ушло ещё одно задание
func (s *Session) BeginJob() {
	s.Pending++
	s.State = StateProcessing
}

// FinishJob отмечает доставку результата.
// Повторная доставка того же результата не уводит счётчик в минус.
func (s *Session) FinishJob() {
	if s.Pending > 0 {
		s.Pending--
	}
	if s.Pending == 0 {
		s.State = StateMainMenu
	}
}

// Reset возвращает сессию в главное меню
func (s *Session) Reset() {
	s.Pending = 0
	s.State = StateMainMenu
}
