package app

const (
	msgStart = `👋 Привет! Я бот для распознавания объектов на фотографиях.

📸 Отправьте мне фото, и я пришлю список найденных объектов и картинку с разметкой.

📋 Команды:
/help — справка
/cancel — сбросить ожидание результатов`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото
2️⃣ Бот поставит его в очередь на распознавание
3️⃣ Когда модель закончит, вы получите список объектов и фото с рамками

📋 Команды:
/cancel — сбросить ожидание результатов`

	msgProcessing      = "⏳ Изображение обрабатывается. Пожалуйста, подождите..."
	msgEchoPrompt      = "Ваше сообщение: %s\n📸 Отправьте фото для распознавания объектов."
	msgEcho            = "Ваше сообщение: %s"
	msgUnsupported     = "❓ Не знаю, что с этим делать.\n📸 Отправьте фото."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgCancelled       = "❌ Ожидание результатов сброшено."
	msgProcessingError = "⚠️ Не удалось принять изображение. Попробуйте ещё раз."

	msgResultsHeader = "🔎 Обнаруженные объекты:\n"
	msgNoObjects     = "✅ Объекты не обнаружены."
)
