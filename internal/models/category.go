package models

// Category is the coarse, manually assigned category on a record.
type Category string

const (
	CategoryDigital Category = "数码"
	CategoryApparel Category = "服饰"
	CategoryCamera  Category = "摄影"
	CategoryToys    Category = "潮玩"
	CategoryBooks   Category = "图书"
	CategoryOther   Category = "其他"
)

// Fine-grained categories used for matching. The external classifier is asked
// to answer from this vocabulary, and the keyword detector maps names into the
// same space, so tag agreement and keyword agreement stay comparable.
const (
	TagConsoles     = "主机设备"
	TagApparel      = "服饰"
	TagCamera       = "摄影器材"
	TagCollectibles = "卡牌潮玩"
	TagMedia        = "图书音像"
	TagBeauty       = "美妆个护"
)

// FineTags lists the classifier vocabulary in a stable order.
func FineTags() []string {
	return []string{TagConsoles, TagApparel, TagCamera, TagCollectibles, TagMedia, TagBeauty}
}
