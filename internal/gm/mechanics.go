package gm

import "github.com/nexusweave/nexus/server/internal/model"

// DefaultMechanics returns the built-in rules catalogue. Each mechanic is a
// prompt fragment the operator can toggle; disabled ones are left out of the
// system prompt. The returned slice is a fresh copy.
func DefaultMechanics() []model.Mechanic {
	out := make([]model.Mechanic, len(defaultMechanics))
	copy(out, defaultMechanics)
	return out
}

// MergeMechanics overlays stored mechanics onto the defaults by id. Defaults
// keep their order, stored entries override matching ids, and unknown stored
// ids are dropped so removed mechanics disappear on upgrade.
func MergeMechanics(stored []model.Mechanic) []model.Mechanic {
	byID := make(map[string]model.Mechanic, len(stored))
	for _, m := range stored {
		byID[m.ID] = m
	}
	out := make([]model.Mechanic, 0, len(defaultMechanics))
	for _, def := range defaultMechanics {
		if m, ok := byID[def.ID]; ok {
			def.Enabled = m.Enabled
			if m.Name != "" {
				def.Name = m.Name
			}
			if m.Description != "" {
				def.Description = m.Description
			}
		}
		out = append(out, def)
	}
	return out
}

var defaultMechanics = []model.Mechanic{
	{
		ID:          "classic",
		Name:        "Classic Flow",
		Enabled:     true,
		Description: "Обычный бросок 1d20 + Mod. Простая проверка навыка.",
	},
	{
		ID:      "triple",
		Name:    "Stress Resonance (Резонанс Стресса)",
		Enabled: true,
		Description: "Бросок 3d20. Сортировка: [Min, Mid, Max].\n" +
			"- 0-1 Стресс: Берется (Max) + Mod. ВАЖНО: Использование максимума выжигает разум! Увеличь Стресс персонажа на +2.\n" +
			"- 2-4 Стресс: Берется (Mid) + Mod. Увеличь Стресс на +1.\n" +
			"- 5+ Стресс: Берется (Min) + Mod. Катарсис: персонаж сбрасывает напряжение. Уменьши Стресс на -2.",
	},
	{
		ID:          "shifted",
		Name:        "Fate Shift (Сдвиг Судьбы)",
		Enabled:     true,
		Description: "Stress Resonance + 1d6.\n- 1d6: 1-2 (-1), 3-4 (0), 5-6 (+1).",
	},
	{
		ID:          "taint",
		Name:        "Chaos Roll (Бросок Хаоса)",
		Enabled:     true,
		Description: "Бросок 2d20 + Mod. Дубль = +1 к Doom Pool.",
	},
	{
		ID:          "threat",
		Name:        "Threat Level (Кубик Угрозы)",
		Enabled:     true,
		Description: "Если в броске указано \"Threat dX = -Y\" (Кубик Угрозы), ты ДОЛЖЕН вычесть значение Y из итогового результата игрока. Это сопротивление среды или противника.",
	},
	{
		ID:          "hp",
		Name:        "Здоровье (HP)",
		Enabled:     true,
		Description: "Отражает физическое состояние. Падение до 0 означает смерть или тяжелую травму.",
	},
	{
		ID:          "stress",
		Name:        "Стресс (Stress)",
		Enabled:     true,
		Description: "Ментальное напряжение (от 0 до 10). Влияет на броски Nexus Triple. При достижении 10 персонаж сходит с ума.",
	},
	{
		ID:          "tokens",
		Name:        "Жетоны (Tokens)",
		Enabled:     true,
		Description: "Мета-валюта. Игроки могут тратить их на перебросы или сюжетные вмешательства.",
	},
	{
		ID:          "condition",
		Name:        "Состояние (Condition)",
		Enabled:     true,
		Description: "Краткое описание текущего статуса персонажа (например, \"Истекает кровью\", \"Вдохновлен\").",
	},
	{
		ID:          "actions",
		Name:        "Векторы действий (Actions)",
		Enabled:     true,
		Description: "Предлагаемые ИИ варианты действий для игрока. Категории: Профильный, Рискованный, Синергия, Искушение.",
	},
	{
		ID:          "threats_dash",
		Name:        "Угрозы (Threats)",
		Enabled:     true,
		Description: "Активные противники или опасности в сцене. Имеют свои HP и особенности.",
	},
	{
		ID:          "scene_aspects",
		Name:        "Аспекты сцены (Scene Aspects)",
		Enabled:     true,
		Description: "Важные детали окружения, которые можно использовать или которые мешают.",
	},
	{
		ID:          "clocks",
		Name:        "Часы (Clocks)",
		Enabled:     true,
		Description: "Счетчики прогресса для отслеживания надвигающихся событий или длительных задач (например, \"Прибытие подкрепления 2/4\").",
	},
	{
		ID:          "doom_pool",
		Name:        "Пул Рока (Doom Pool)",
		Enabled:     true,
		Description: "Счетчик эскалации (от 0 до 5). Мастер использует его для усложнения сцены или ввода новых угроз.",
	},
	{
		ID:          "echoes",
		Name:        "Эхо (Echoes)",
		Enabled:     true,
		Description: "Отголоски прошлых решений, которые влияют на текущую ситуацию.",
	},
	{
		ID:          "inventory",
		Name:        "Инвентарь (Inventory)",
		Enabled:     true,
		Description: "Список предметов, которые несет персонаж. Влияет на возможности и векторы действий.",
	},
	{
		ID:          "relationships",
		Name:        "Отношения (Relationships)",
		Enabled:     false,
		Description: "Система связей с NPC. Уровень от -10 (Враг) до +10 (Верный союзник). Влияет на сложность убеждения и готовность NPC помогать.",
	},
	{
		ID:          "narrative_rights",
		Name:        "Narrative Rights (Право на Истину)",
		Enabled:     true,
		Description: "Раз в 2-4 хода задавай игроку вопрос: \"Какую деталь ты заметил?\" или \"Почему этот NPC тебе знаком?\". Это позволяет игроку влиять на лор.",
	},
	{
		ID:          "flashbacks",
		Name:        "Flashbacks (Флешбэки)",
		Enabled:     true,
		Description: "Игрок может потратить 1 Жетон, чтобы описать ретро-сцену подготовки, которая помогает в текущей ситуации.",
	},
	{
		ID:          "bullet_time",
		Name:        "Bullet Time (Эффект Времени)",
		Enabled:     true,
		Description: "При выпадении \"20\" на кубике или в финале боя описывай момент сверхдетально, замедляя время.",
	},
	{
		ID:          "interludes",
		Name:        "Interludes (Интерлюдии)",
		Enabled:     true,
		Description: "Иногда делай вставки \"Тем временем...\", показывая события в других местах для нагнетания саспенса.",
	},
	{
		ID:          "sensory",
		Name:        "Sensory Details (Сенсорика)",
		Enabled:     true,
		Description: "Описывай запахи, температуру, тактильные ощущения и \"гличи\" реальности.",
	},
}
