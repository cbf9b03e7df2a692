package motivation

// programContext describes the group routine to the model
const programContext = "Группа тренируется каждый день: делают 80 отжиманий и 80 упражнений на пресс. " +
	"Это их ежедневная программа тренировок."

const factPrompt = programContext + "\n\n" +
	"Придумай короткий (1-2 предложения) мотивирующий факт о пользе именно такой программы тренировок " +
	"(80 отжиманий и 80 упражнений на пресс ежедневно). " +
	"Факт должен быть научно обоснованным, вдохновляющим и релевантным для их конкретной программы. " +
	"Ответ должен быть только фактом, без дополнительных комментариев."

const tipPrompt = programContext + "\n\n" +
	"Придумай короткий (1 предложение) практический совет специально для этой группы. " +
	"Можешь дать совет о технике выполнения, восстановлении, питании, прогрессии " +
	"или о том, как избежать перетренированности при ежедневных тренировках. " +
	"Ответ должен быть только советом, без дополнительных комментариев."

// MaxPartLength caps one generated fact or tip in characters
const MaxPartLength = 600

var fallbackFacts = []string{
	"Регулярные отжимания укрепляют не только руки, но и корпус, улучшая осанку!",
	"Упражнения на пресс помогают поддерживать здоровье позвоночника и снижают риск травм спины.",
	"Всего 10 минут физической активности в день могут увеличить продолжительность жизни на 2 года!",
	"Силовые тренировки ускоряют метаболизм даже в состоянии покоя - мышцы сжигают калории 24/7.",
	"Регулярные тренировки улучшают качество сна и помогают быстрее засыпать.",
}

var fallbackTips = []string{
	"Пей достаточно воды - 2-3 литра в день помогут мышцам быстрее восстанавливаться.",
	"Не забывай про разминку перед тренировкой - это снизит риск травм.",
	"Правильная техника важнее количества - лучше сделать меньше, но правильно!",
	"Восстановление так же важно, как тренировка - давай мышцам отдых между днями.",
	"Белковая пища после тренировки помогает мышцам быстрее восстанавливаться.",
}
