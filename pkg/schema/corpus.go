package schema

// The labeled corpora below seed the embedding indexes. Every label maps to a
// representative text that gets embedded once at index build time; queries are
// ranked against those vectors. The phrasing mirrors how laboratory staff
// actually name their columns, which matters more for retrieval quality than
// formal definitions would.

// CategoryCorpus maps each category label to its representative text for the
// header classifier index.
func CategoryCorpus() map[string]string {
	return map[string]string{
		string(Matter):        "material substance chemical compound catalyst support electrolyte membrane powder element sample ionomer",
		string(Property):      "measured property result output value conductivity resistance activity surface area particle size loading",
		string(Parameter):     "process parameter setting condition temperature pressure duration time speed rate flow humidity potential",
		string(Manufacturing): "fabrication manufacturing synthesis step milling mixing coating drying annealing deposition spraying",
		string(Measurement):   "measurement characterization technique analysis microscopy spectroscopy diffraction voltammetry test",
		string(Metadata):      "metadata identifier batch number date operator file name experiment id laboratory note comment",
	}
}

// AttributeCorpus maps each attribute label of the category to its
// representative text for the attribute classifier index.
func AttributeCorpus(c Category) map[string]string {
	common := map[string]string{
		"name":       "name title label designation of the entity",
		"identifier": "identifier id code number designation key",
	}

	switch c {
	case Matter:
		corpus := map[string]string{
			"ratio":         "ratio fraction proportion mixing ratio weight ratio molar ratio percent",
			"concentration": "concentration molarity content amount loading weight percent",
			"batch_number":  "batch number lot number production batch charge",
		}
		for k, v := range common {
			corpus[k] = v
		}
		return corpus
	case Property, Parameter:
		return map[string]string{
			"name":               "name title label of the measured quantity",
			"value":              "value measured number reading result",
			"unit":               "unit of measurement dimension scale",
			"error":              "error uncertainty tolerance margin",
			"average":            "average mean value",
			"standard_deviation": "standard deviation spread sigma variance",
		}
	case Manufacturing, Measurement, Metadata:
		return common
	}
	return nil
}
