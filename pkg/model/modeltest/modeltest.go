// Package modeltest provides a small metabolic model for tests.
package modeltest

import (
	"github.com/yumyai/strainmodel/pkg/model"
)

// BiomassID is the objective reaction of Toy.
const BiomassID = "BIOMASS_Toy"

func rxn(id string, lb, ub float64, rule string, mets ...model.Coefficient) *model.Reaction {
	return &model.Reaction{ID: id, Name: id, LowerBound: lb, UpperBound: ub, GeneReactionRule: rule, Metabolites: mets}
}

func c(id string, v float64) model.Coefficient {
	return model.Coefficient{Metabolite: id, Value: v}
}

// Toy returns a fresh model with glucose and oxygen exchanges, a glycolysis step
// catalysed by "(g2 and g3) or g4", a spontaneous reaction, a demand, a sink and a biomass
// reaction that consumes atp_c and pyr_c.
func Toy() *model.JSONModel {
	doc := model.Document{
		ID: "toy",
		Metabolites: []*model.Metabolite{
			{ID: "glc__D_e", Name: "D-Glucose", Compartment: "e", Formula: "C6H12O6"},
			{ID: "glc__D_c", Name: "D-Glucose", Compartment: "c", Formula: "C6H12O6"},
			{ID: "o2_e", Name: "O2", Compartment: "e", Formula: "O2"},
			{ID: "o2_c", Name: "O2", Compartment: "c", Formula: "O2"},
			{ID: "nh4_e", Name: "Ammonium", Compartment: "e", Formula: "H4N"},
			{ID: "pyr_c", Name: "Pyruvate", Compartment: "c", Formula: "C3H3O3",
				Annotation: map[string]model.Annotation{"bigg.metabolite": {"pyr"}, "kegg.compound": {"C00022"}}},
			{ID: "atp_c", Name: "ATP", Compartment: "c", Formula: "C10H12N5O13P3"},
			{ID: "adp_c", Name: "ADP", Compartment: "c", Formula: "C10H12N5O10P2"},
		},
		Reactions: []*model.Reaction{
			rxn("EX_glc__D_e", -10, 1000, "", c("glc__D_e", -1)),
			rxn("EX_o2_e", -20, 1000, "", c("o2_e", -1)),
			rxn("EX_nh4_e", -1000, 1000, "", c("nh4_e", -1)),
			rxn("GLCt", 0, 1000, "g1", c("glc__D_e", -1), c("glc__D_c", 1)),
			rxn("O2t", -1000, 1000, "", c("o2_e", -1), c("o2_c", 1)),
			rxn("GLYC", 0, 1000, "(g2 and g3) or g4", c("glc__D_c", -1), c("o2_c", -1), c("pyr_c", 2), c("atp_c", 1)),
			rxn("ATPM", 0, 1000, "g5", c("atp_c", -1), c("adp_c", 1)),
			rxn("SPONT", 0, 1000, "KPN_SPONT", c("adp_c", -1), c("atp_c", 1)),
			rxn("DM_pyr_c", 0, 1000, "", c("pyr_c", -1)),
			rxn("SK_atp_c", -1000, 1000, "", c("atp_c", -1)),
			rxn(BiomassID, 0, 1000, "", c("atp_c", -10), c("pyr_c", -1), c("adp_c", 10)),
		},
		Genes: []*model.Gene{
			{ID: "g1"}, {ID: "g2"}, {ID: "g3"}, {ID: "g4"}, {ID: "g5"}, {ID: "KPN_SPONT"},
		},
	}
	doc.Reactions[len(doc.Reactions)-1].ObjectiveCoefficient = 1
	doc.Reactions[len(doc.Reactions)-1].Annotation = map[string]model.Annotation{
		"bigg.reaction": {"BIOMASS_Toy"},
	}

	m, err := model.New(doc)
	if err != nil {
		panic(err)
	}
	return m
}
