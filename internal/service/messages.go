package service

import (
	"fmt"
	"math"
)

func deadlineText(base string, offsetSec int64) string {
	hours := int64(math.Round(float64(offsetSec) / 3600))
	return fmt.Sprintf("%s\n⏰ Дедлайн скоро (за %dч).", base, hours)
}

func overdueText(base string) string {
	return base + "\n⚠️ Просрочено. Проверь статус и следующий шаг."
}
