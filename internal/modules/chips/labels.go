package chips

import "strings"

// Chip ids.
const (
	IDOpenNow      = "open_now"
	IDDelivery     = "delivery"
	IDPriceBudget  = "price_budget"
	IDRatingHigh   = "rating_high"
	IDSortBest     = "sort_best_match"
	IDSortDistance = "sort_distance"
	IDSortRating   = "sort_rating"
	IDSortPrice    = "sort_price"
	IDViewList     = "view_list"
	IDViewMap      = "view_map"
	IDClosedNow    = "closed_now"
	IDExpandRadius = "expand_radius"
	IDClearFilters = "clear_filters"
	IDTryNearby    = "try_nearby"
	IDClosest      = "closest"
)

var labels = map[string]map[string]string{
	"en": {
		IDOpenNow: "Open now", IDDelivery: "Delivery", IDPriceBudget: "Budget", IDRatingHigh: "Rated 4+",
		IDSortBest: "Best match", IDSortDistance: "Nearest", IDSortRating: "Top rated", IDSortPrice: "Cheapest",
		IDViewList: "List", IDViewMap: "Map", IDClosedNow: "Closed now", IDExpandRadius: "Expand search area",
		IDClearFilters: "Clear filters", IDTryNearby: "Try nearby", IDClosest: "Closest to me",
	},
	"es": {
		IDOpenNow: "Abierto ahora", IDDelivery: "A domicilio", IDPriceBudget: "Económico", IDRatingHigh: "4+ estrellas",
		IDSortBest: "Más relevante", IDSortDistance: "Más cercano", IDSortRating: "Mejor valorado", IDSortPrice: "Más barato",
		IDViewList: "Lista", IDViewMap: "Mapa", IDClosedNow: "Cerrado ahora", IDExpandRadius: "Ampliar zona",
		IDClearFilters: "Quitar filtros", IDTryNearby: "Buscar cerca", IDClosest: "Lo más cercano",
	},
	"fr": {
		IDOpenNow: "Ouvert maintenant", IDDelivery: "Livraison", IDPriceBudget: "Petit budget", IDRatingHigh: "4+ étoiles",
		IDSortBest: "Pertinence", IDSortDistance: "Plus proche", IDSortRating: "Mieux notés", IDSortPrice: "Moins cher",
		IDViewList: "Liste", IDViewMap: "Carte", IDClosedNow: "Fermé maintenant", IDExpandRadius: "Élargir la zone",
		IDClearFilters: "Effacer les filtres", IDTryNearby: "Chercher à proximité", IDClosest: "Le plus proche",
	},
	"zh-TW": {
		IDOpenNow: "營業中", IDDelivery: "外送", IDPriceBudget: "平價", IDRatingHigh: "4星以上",
		IDSortBest: "最相關", IDSortDistance: "最近", IDSortRating: "評分最高", IDSortPrice: "最便宜",
		IDViewList: "列表", IDViewMap: "地圖", IDClosedNow: "目前休息", IDExpandRadius: "擴大範圍",
		IDClearFilters: "清除篩選", IDTryNearby: "搜尋附近", IDClosest: "離我最近",
	},
	"ja": {
		IDOpenNow: "営業中", IDDelivery: "デリバリー", IDPriceBudget: "お手頃", IDRatingHigh: "評価4以上",
		IDSortBest: "おすすめ順", IDSortDistance: "近い順", IDSortRating: "評価順", IDSortPrice: "安い順",
		IDViewList: "リスト", IDViewMap: "地図", IDClosedNow: "営業時間外", IDExpandRadius: "範囲を広げる",
		IDClearFilters: "条件をクリア", IDTryNearby: "近くで探す", IDClosest: "一番近い店",
	},
	"ko": {
		IDOpenNow: "영업 중", IDDelivery: "배달", IDPriceBudget: "저렴한", IDRatingHigh: "별점 4+",
		IDSortBest: "추천순", IDSortDistance: "가까운순", IDSortRating: "평점순", IDSortPrice: "저렴한순",
		IDViewList: "목록", IDViewMap: "지도", IDClosedNow: "영업 종료", IDExpandRadius: "범위 넓히기",
		IDClearFilters: "필터 해제", IDTryNearby: "주변 검색", IDClosest: "가장 가까운 곳",
	},
	"he": {
		IDOpenNow: "פתוח עכשיו", IDDelivery: "משלוחים", IDPriceBudget: "זול", IDRatingHigh: "דירוג 4+",
		IDSortBest: "הכי מתאים", IDSortDistance: "הכי קרוב", IDSortRating: "דירוג גבוה", IDSortPrice: "הכי זול",
		IDViewList: "רשימה", IDViewMap: "מפה", IDClosedNow: "סגור עכשיו", IDExpandRadius: "הרחב אזור",
		IDClearFilters: "נקה מסננים", IDTryNearby: "חפש בסביבה", IDClosest: "הכי קרוב אליי",
	},
	"ar": {
		IDOpenNow: "مفتوح الآن", IDDelivery: "توصيل", IDPriceBudget: "اقتصادي", IDRatingHigh: "تقييم 4+",
		IDSortBest: "الأكثر صلة", IDSortDistance: "الأقرب", IDSortRating: "الأعلى تقييمًا", IDSortPrice: "الأرخص",
		IDViewList: "قائمة", IDViewMap: "خريطة", IDClosedNow: "مغلق الآن", IDExpandRadius: "توسيع المنطقة",
		IDClearFilters: "مسح الفلاتر", IDTryNearby: "ابحث بالقرب", IDClosest: "الأقرب إليّ",
	},
	"ru": {
		IDOpenNow: "Открыто сейчас", IDDelivery: "Доставка", IDPriceBudget: "Недорого", IDRatingHigh: "Рейтинг 4+",
		IDSortBest: "По релевантности", IDSortDistance: "Ближайшие", IDSortRating: "Лучшие по рейтингу", IDSortPrice: "Дешевле",
		IDViewList: "Список", IDViewMap: "Карта", IDClosedNow: "Закрыто сейчас", IDExpandRadius: "Расширить зону",
		IDClearFilters: "Сбросить фильтры", IDTryNearby: "Искать рядом", IDClosest: "Ближе всего",
	},
}

// Label returns the display label of id in lang, falling back to the base
// language and then to English.
func Label(lang, id string) string {
	if table, ok := labels[lang]; ok {
		if l, ok := table[id]; ok {
			return l
		}
	}
	if base, _, found := strings.Cut(lang, "-"); found {
		if table, ok := labels[base]; ok {
			if l, ok := table[id]; ok {
				return l
			}
		}
	}
	if base, _, _ := strings.Cut(lang, "-"); base == "zh" {
		return labels["zh-TW"][id]
	}
	return labels["en"][id]
}
