package ontology

import "fmt"

// Registry holds the one relationship ontology and the one attribute ontology
// of a session. It is built once at startup and only read afterwards.
type Registry struct {
	Relationship *Ontology
	Attribute    *Ontology
}

// NewRegistry pairs two ontologies, checking each has the expected kind.
func NewRegistry(rel, attr *Ontology) (*Registry, error) {
	if rel == nil || rel.Kind() != KindRelationship {
		return nil, fmt.Errorf("registry: relationship slot needs a %s ontology", KindRelationship)
	}
	if attr == nil || attr.Kind() != KindAttribute {
		return nil, fmt.Errorf("registry: attribute slot needs an %s ontology", KindAttribute)
	}
	return &Registry{Relationship: rel, Attribute: attr}, nil
}

// DefaultRegistry returns the built-in coastal wetland ontologies.
func DefaultRegistry() *Registry {
	return &Registry{Relationship: WetlandRelationships(), Attribute: WetlandAttributes()}
}

// Get returns the ontology for kind.
func (r *Registry) Get(kind Kind) (*Ontology, error) {
	switch kind {
	case KindRelationship:
		return r.Relationship, nil
	case KindAttribute:
		return r.Attribute, nil
	default:
		return nil, fmt.Errorf("unknown ontology kind: %q", kind)
	}
}

// vocab is shorthand for a category whose instances are a comma list.
func vocab(name, list string) Category {
	return Category{Name: name, Instances: SplitVocabulary(list)}
}

const (
	plantVocab     = "红树,芦苇,互花米草,碱蓬,盐地碱蓬,盐角草,獐毛,蒲公英,柽柳,稻,丛枝蓼,川蔓藻,刺槐,刺苋,大叶藻,地榆,繁缕,拂子茅,浮萍,甘草,杠柳,狗牙根,构,黑藻,碱茅,金鱼藻,决明,苦草,苦荬菜,荔枝草,木榄,海莲,滨麦，秋英"
	waterVocab     = "海水, 潮沟, 池塘, 河流, 湖泊, 湿地池, 沼泽"
	flatVocab      = "滩涂,潮滩"
	wetlandVocab   = "海滩盐沼"
	communityVocab = "草甸,红树林群落,香蒲群落,海草床群落，潮上带群落,潮间带群落，白茅群落,芦苇群落,盐沼群落,棒头草群落,凤眼莲群落,空心莲子草群落,眼子菜群落,酸模叶蓼群落,大薸群落"
)

// WetlandRelationships is the entity-relationship ontology for coastal
// wetland plant texts.
func WetlandRelationships() *Ontology {
	return NewRelationship(
		[]Category{
			vocab("植物", plantVocab),
			vocab("水体", waterVocab),
			vocab("滩涂", flatVocab),
			vocab("农田", "旱耕地, 水浇地"),
			vocab("湿地", wetlandVocab),
			vocab("属", "蓼属,川蔓藻属,稻属"),
			vocab("科", "菊科,泽泻科,苋科,豆科,禾本科,蓼科，川蔓藻科"),
			vocab("界", "植物界"),
			vocab("门", "被子植物门,绿藻门,红藻门"),
			vocab("纲", "木兰纲,双子叶植物纲,单子叶植物纲,木贼纲"),
			vocab("目", "菊目,泽泻目,石竹目,豆目,禾本目"),
			vocab("群落", communityVocab),
		},
		[]string{"邻近", "生长", "界", "门", "纲", "目", "科", "属", "别名", "俗名", "优势种", "伴生种"},
	)
}

// WetlandAttributes is the entity-attribute ontology for coastal wetland
// plant texts. Example values are free text and are not split.
func WetlandAttributes() *Ontology {
	return NewAttribute(
		[]Category{
			vocab("植物", plantVocab),
			vocab("水体", waterVocab),
			vocab("滩涂", flatVocab),
			vocab("湿地", wetlandVocab),
			vocab("群落", communityVocab),
		},
		[]Label{
			{Name: "生活型", Examples: []string{"多年生草本植物,一年生草本植物,一年或二年生草本植物,乔木或灌木,多年生沉水草本植物"}},
			{Name: "高度", Examples: []string{"45-100厘米"}},
			{Name: "盖度", Examples: []string{"75-90%,100%"}},
			{Name: "颜色", Examples: []string{"深蓝色,绿色,粉红色"}},
			{Name: "染色体", Examples: []string{"2n=30"}},
			{Name: "花", Examples: []string{"花单生，盛开时长约3厘米，花梗萼平滑无棱，暗黄红色，花柱棱柱形，长约2厘米，黄色且柱头有裂；"}},
			{Name: "学名", Examples: []string{"yrrhiza uralensis Fisch."}},
			{Name: "茎", Examples: []string{"茎直立，颜色为绿色，表面光滑。"}},
			{Name: "叶", Examples: []string{"叶椭圆状长圆形，长达15厘米，先端短尖，基部楔形；"}},
			{Name: "花", Examples: []string{"花序圆锥状疏展，花色为淡黄色，长约30厘米，分枝多，棱粗糙，在成熟期弯垂，小穗两侧扁，为长圆状卵形或椭圆形，长约1厘米，宽2-4毫米，花药长2-3毫米。"}},
			{Name: "果实", Examples: []string{"果实为谷粒，呈卵形或椭圆形对圆筒状，颜色为米白色或金黄色，长约5毫米，宽约2毫米，厚1-1.5毫米。"}},
			{Name: "种子", Examples: []string{"种子矩圆状卵形，种皮近革质，有钩状刺毛，直径约1.5毫米。"}},
			{Name: "功效", Examples: []string{"全草可入药，有清血、解热、生肌之效。"}},
			{Name: "物候期", Examples: []string{"花期4-5月，果期6-7月。"}},
			{Name: "用途", Examples: []string{"韧皮纤维可作造纸材料"}},
			{Name: "作用", Examples: []string{"沼泽在维护生态系统稳定性、促进水循环和提供养分方面具有重要作用。"}},
			{Name: "生境", Examples: []string{"生于轻度盐碱性湿润草地、田边、水溪、河谷、低草甸盐化沙地。"}},
		},
	)
}
