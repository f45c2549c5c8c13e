package narration

import (
	"strings"

	"scout/internal/modules/mode"
)

type fallbackKey struct {
	mode   mode.Mode
	reason mode.Reason
}

type fallbackText struct {
	message  string
	question string
}

var (
	kNormal      = fallbackKey{mode.Normal, mode.ReasonNone}
	kNoResults   = fallbackKey{mode.Recovery, mode.ReasonNoResults}
	kLowConf     = fallbackKey{mode.Recovery, mode.ReasonLowConfidence}
	kProvider    = fallbackKey{mode.Recovery, mode.ReasonProviderError}
	kGeocode     = fallbackKey{mode.Recovery, mode.ReasonGeocodeError}
	kQuota       = fallbackKey{mode.Recovery, mode.ReasonQuotaExceeded}
	kCapacity    = fallbackKey{mode.Recovery, mode.ReasonCapacityExceeded}
	kAmbiguous   = fallbackKey{mode.Clarify, mode.ReasonAmbiguousQuery}
	kNoLocation  = fallbackKey{mode.Clarify, mode.ReasonLocationUnresolved}
	modeDefaults = map[mode.Mode]fallbackKey{
		mode.Normal:   kNormal,
		mode.Recovery: kNoResults,
		mode.Clarify:  kNoLocation,
	}
)

// fallbacks holds the fixed copy shown whenever the model's message cannot
// be used. Every language carries every key.
var fallbacks = map[string]map[fallbackKey]fallbackText{
	"en": {
		kNormal:     {message: "Here are the places that match your search."},
		kNoResults:  {message: "I couldn't find any places that match. Try widening the area or removing a filter."},
		kLowConf:    {message: "I'm not sure I understood your search. Try rephrasing it or adding a location."},
		kProvider:   {message: "The place search is having trouble right now. Please try again in a moment."},
		kGeocode:    {message: "I couldn't find that location. Try a nearby city or landmark."},
		kQuota:      {message: "The search limit has been reached for now. Please try again later."},
		kCapacity:   {message: "The service is busy right now. Please try again in a moment."},
		kAmbiguous:  {message: "Your search can be read more than one way.", question: "Which place did you mean?"},
		kNoLocation: {message: "I need a location to search around.", question: "Where should I look?"},
	},
	"es": {
		kNormal:     {message: "Estos son los lugares que coinciden con tu búsqueda."},
		kNoResults:  {message: "No encontré lugares que coincidan. Prueba a ampliar la zona o quitar un filtro."},
		kLowConf:    {message: "No estoy seguro de haber entendido tu búsqueda. Prueba a reformularla o añadir una ubicación."},
		kProvider:   {message: "La búsqueda de lugares tiene problemas en este momento. Inténtalo de nuevo en un momento."},
		kGeocode:    {message: "No pude encontrar esa ubicación. Prueba con una ciudad o un lugar cercano."},
		kQuota:      {message: "Se alcanzó el límite de búsquedas por ahora. Inténtalo más tarde."},
		kCapacity:   {message: "El servicio está ocupado en este momento. Inténtalo de nuevo en un momento."},
		kAmbiguous:  {message: "Tu búsqueda puede entenderse de varias maneras.", question: "¿A qué lugar te refieres?"},
		kNoLocation: {message: "Necesito una ubicación para buscar.", question: "¿Dónde quieres que busque?"},
	},
	"fr": {
		kNormal:     {message: "Voici les lieux qui correspondent à votre recherche."},
		kNoResults:  {message: "Je n'ai trouvé aucun lieu correspondant. Essayez d'élargir la zone ou de retirer un filtre."},
		kLowConf:    {message: "Je ne suis pas sûr d'avoir compris votre recherche. Essayez de la reformuler ou d'ajouter un lieu."},
		kProvider:   {message: "La recherche de lieux rencontre un problème. Réessayez dans un instant."},
		kGeocode:    {message: "Je n'ai pas trouvé cet endroit. Essayez une ville ou un repère proche."},
		kQuota:      {message: "La limite de recherches est atteinte pour le moment. Réessayez plus tard."},
		kCapacity:   {message: "Le service est très sollicité. Réessayez dans un instant."},
		kAmbiguous:  {message: "Votre recherche peut se comprendre de plusieurs façons.", question: "De quel endroit parlez-vous ?"},
		kNoLocation: {message: "J'ai besoin d'un lieu pour chercher.", question: "Où dois-je chercher ?"},
	},
	"zh-TW": {
		kNormal:     {message: "以下是符合您搜尋的地點。"},
		kNoResults:  {message: "找不到符合的地點。請試著擴大範圍或移除篩選條件。"},
		kLowConf:    {message: "我不太確定是否理解您的搜尋。請換個說法或加上地點。"},
		kProvider:   {message: "地點搜尋目前發生問題，請稍後再試。"},
		kGeocode:    {message: "找不到這個地點。請試試附近的城市或地標。"},
		kQuota:      {message: "目前已達搜尋上限，請稍後再試。"},
		kCapacity:   {message: "服務目前忙碌中，請稍後再試。"},
		kAmbiguous:  {message: "您的搜尋可能有不同的意思。", question: "您指的是哪個地點？"},
		kNoLocation: {message: "我需要一個地點才能搜尋。", question: "要在哪裡搜尋呢？"},
	},
	"ja": {
		kNormal:     {message: "検索に合うお店が見つかりました。"},
		kNoResults:  {message: "条件に合うお店が見つかりませんでした。範囲を広げるか、条件を減らしてみてください。"},
		kLowConf:    {message: "検索内容をうまく理解できませんでした。言い換えるか、場所を追加してみてください。"},
		kProvider:   {message: "現在、お店の検索で問題が発生しています。しばらくしてからもう一度お試しください。"},
		kGeocode:    {message: "その場所が見つかりませんでした。近くの市や目印で試してみてください。"},
		kQuota:      {message: "現在、検索の上限に達しています。後でもう一度お試しください。"},
		kCapacity:   {message: "現在、サービスが混み合っています。しばらくしてからもう一度お試しください。"},
		kAmbiguous:  {message: "検索内容が複数の意味に取れます。", question: "どちらの場所のことですか？"},
		kNoLocation: {message: "検索する場所が必要です。", question: "どこで探しますか？"},
	},
	"ko": {
		kNormal:     {message: "검색과 일치하는 장소입니다."},
		kNoResults:  {message: "일치하는 장소를 찾지 못했습니다. 범위를 넓히거나 필터를 해제해 보세요."},
		kLowConf:    {message: "검색 내용을 정확히 이해하지 못했습니다. 다르게 표현하거나 위치를 추가해 보세요."},
		kProvider:   {message: "지금 장소 검색에 문제가 있습니다. 잠시 후 다시 시도해 주세요."},
		kGeocode:    {message: "해당 위치를 찾지 못했습니다. 근처 도시나 랜드마크로 시도해 보세요."},
		kQuota:      {message: "현재 검색 한도에 도달했습니다. 나중에 다시 시도해 주세요."},
		kCapacity:   {message: "지금 서비스가 혼잡합니다. 잠시 후 다시 시도해 주세요."},
		kAmbiguous:  {message: "검색어가 여러 의미로 해석될 수 있습니다.", question: "어느 장소를 말씀하시는 건가요?"},
		kNoLocation: {message: "검색할 위치가 필요합니다.", question: "어디에서 찾아볼까요?"},
	},
	"he": {
		kNormal:     {message: "הנה המקומות שמתאימים לחיפוש שלך."},
		kNoResults:  {message: "לא מצאתי מקומות מתאימים. נסו להרחיב את האזור או להסיר מסנן."},
		kLowConf:    {message: "אני לא בטוח שהבנתי את החיפוש. נסו לנסח אותו מחדש או להוסיף מיקום."},
		kProvider:   {message: "יש כרגע בעיה בחיפוש המקומות. נסו שוב בעוד רגע."},
		kGeocode:    {message: "לא הצלחתי למצוא את המיקום הזה. נסו עיר או ציון דרך קרובים."},
		kQuota:      {message: "הגעתם למגבלת החיפושים לעת עתה. נסו שוב מאוחר יותר."},
		kCapacity:   {message: "השירות עמוס כרגע. נסו שוב בעוד רגע."},
		kAmbiguous:  {message: "אפשר להבין את החיפוש שלך ביותר מדרך אחת.", question: "לאיזה מקום התכוונת?"},
		kNoLocation: {message: "אני צריך מיקום כדי לחפש.", question: "איפה לחפש?"},
	},
	"ar": {
		kNormal:     {message: "إليك الأماكن التي تطابق بحثك."},
		kNoResults:  {message: "لم أجد أماكن مطابقة. جرّب توسيع المنطقة أو إزالة أحد الفلاتر."},
		kLowConf:    {message: "لست متأكدًا من أنني فهمت بحثك. جرّب إعادة صياغته أو إضافة موقع."},
		kProvider:   {message: "يواجه البحث عن الأماكن مشكلة الآن. يرجى المحاولة بعد قليل."},
		kGeocode:    {message: "لم أتمكن من العثور على هذا الموقع. جرّب مدينة أو معلمًا قريبًا."},
		kQuota:      {message: "تم بلوغ حد البحث حاليًا. يرجى المحاولة لاحقًا."},
		kCapacity:   {message: "الخدمة مشغولة الآن. يرجى المحاولة بعد قليل."},
		kAmbiguous:  {message: "يمكن فهم بحثك بأكثر من طريقة.", question: "أي مكان تقصد؟"},
		kNoLocation: {message: "أحتاج إلى موقع للبحث.", question: "أين تريد أن أبحث؟"},
	},
	"ru": {
		kNormal:     {message: "Вот места, которые подходят под ваш запрос."},
		kNoResults:  {message: "Не удалось найти подходящие места. Попробуйте расширить зону поиска или убрать фильтр."},
		kLowConf:    {message: "Я не уверен, что правильно понял запрос. Попробуйте переформулировать его или добавить место."},
		kProvider:   {message: "Поиск мест сейчас работает с перебоями. Попробуйте ещё раз через минуту."},
		kGeocode:    {message: "Не удалось найти это место. Попробуйте ближайший город или ориентир."},
		kQuota:      {message: "Лимит поисковых запросов пока исчерпан. Попробуйте позже."},
		kCapacity:   {message: "Сервис сейчас перегружен. Попробуйте ещё раз через минуту."},
		kAmbiguous:  {message: "Ваш запрос можно понять по-разному.", question: "Какое место вы имели в виду?"},
		kNoLocation: {message: "Мне нужно место, чтобы начать поиск.", question: "Где искать?"},
	},
}

const fallbackLanguage = "en"

// Fallback returns the fixed copy for (mode, reason) in lang. Unknown
// reasons use the mode's default entry; unknown languages use English.
func Fallback(m mode.Mode, r mode.Reason, lang string) (message, question string) {
	table, ok := fallbacks[lang]
	if !ok {
		base, _, _ := strings.Cut(lang, "-")
		if base == "zh" {
			base = "zh-TW"
		}
		if table, ok = fallbacks[base]; !ok {
			table = fallbacks[fallbackLanguage]
		}
	}
	t, ok := table[fallbackKey{m, r}]
	if !ok {
		key, known := modeDefaults[m]
		if !known {
			key = kNormal
		}
		t = table[key]
	}
	return t.message, t.question
}

// HasLanguage reports whether the table carries copy for lang.
func HasLanguage(lang string) bool {
	_, ok := fallbacks[lang]
	return ok
}
