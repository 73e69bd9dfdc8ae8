package goals

var catalog = []Definition{
	// Attacking
	{
		Key: "basic_attack", Name: "Basic Attack", Group: GroupAttacking, Type: TypeAttack, Target: TargetEnemy,
		Description: "A straightforward frontal assault against the enemy. Available to all units.",
	},
	{
		Key: "cavalry_charge", Name: "Cavalry Charge", Group: GroupAttacking, Type: TypeAttack, Target: TargetEnemy,
		Description:        "A devastating mounted charge aimed at breaking enemy lines.",
		EligibleCategories: []string{"Knights", "Shock Cavalry", "Heavy Cavalry", "Light Cavalry", "Lancers", "Mounted Archers"},
	},
	{
		Key: "arrow_barrage", Name: "Arrow Barrage", Group: GroupAttacking, Type: TypeAttack, Target: TargetEnemy,
		Description:        "Concentrated ranged volley to thin enemy ranks.",
		EligibleCategories: []string{"Longbowmen", "Crossbowmen", "Skirmishers", "Mounted Archers", "Ballistae"},
	},
	{
		Key: "spear_charge", Name: "Spear Charge", Group: GroupAttacking, Type: TypeAttack, Target: TargetEnemy,
		Description:        "A disciplined spear thrust against a chosen enemy.",
		EligibleCategories: []string{"Spear Wall", "Pikemen", "Heavy Infantry"},
	},
	{
		Key: "artillery_volley", Name: "Artillery Volley", Group: GroupAttacking, Type: TypeAttack, Target: TargetEnemy,
		Description:        "Long-range siege fire directed at a target formation.",
		EligibleCategories: []string{"Catapults", "Trebuchets", "Ballistae", "Bombards"},
	},
	{
		Key: "flanking_strike", Name: "Flanking Strike", Group: GroupAttacking, Type: TypeAttack, Target: TargetEnemy,
		Description:        "Execute a coordinated attack on enemy flanks and weak points.",
		EligibleCategories: []string{"Light Cavalry", "Scouts", "Light Infantry", "Lancers"},
	},
	{
		Key: "overwhelming_assault", Name: "Overwhelming Assault", Group: GroupAttacking, Type: TypeAttack, Target: TargetEnemy,
		Description:        "All-out frontal assault with maximum force deployment.",
		EligibleCategories: []string{"Heavy Infantry", "Knights", "Shock Cavalry", "Royal Guard"},
	},

	// Defending
	{
		Key: "hold_the_line", Name: "Hold the Line", Group: GroupDefending, Type: TypeDefend, Target: TargetSelf,
		Description:        "Fortify your position to blunt enemy assaults.",
		EligibleCategories: []string{"Swordsmen", "Shield Wall", "Spear Wall", "Pikemen", "Heavy Infantry", "Royal Guard"},
	},
	{
		Key: "brace_for_impact", Name: "Brace for Impact", Group: GroupDefending, Type: TypeDefend, Target: TargetSelf,
		Description:        "Prepare to absorb the next enemy strike.",
		EligibleCategories: []string{"Swordsmen", "Shield Wall", "Heavy Infantry", "Knights"},
	},
	{
		Key: "take_cover", Name: "Take Cover", Group: GroupDefending, Type: TypeDefend, Target: TargetSelf,
		Description:        "Find cover and minimize casualties from incoming attacks.",
		EligibleCategories: []string{"Longbowmen", "Crossbowmen", "Skirmishers", "Light Infantry", "Scouts"},
	},
	{
		Key: "fortify_position", Name: "Fortify Position", Group: GroupDefending, Type: TypeDefend, Target: TargetSelf,
		Description:        "Dig in and create defensive works for siege units.",
		EligibleCategories: []string{"Catapults", "Trebuchets", "Ballistae", "Bombards", "Siege Towers"},
	},
	{
		Key: "shield_wall", Name: "Shield Wall", Group: GroupDefending, Type: TypeDefend, Target: TargetSelf,
		Description:        "Form an impenetrable wall of shields and armor, maximizing defense.",
		EligibleCategories: []string{"Shield Wall", "Heavy Infantry", "Royal Guard", "Pikemen"},
	},
	{
		Key: "guerrilla_tactics", Name: "Guerrilla Tactics", Group: GroupDefending, Type: TypeDefend, Target: TargetSelf,
		Description:        "Use evasion and mobility to avoid and counter enemy attacks.",
		EligibleCategories: []string{"Scouts", "Light Cavalry", "Skirmishers", "Mounted Archers"},
	},

	// Logistics
	{
		Key: "intercept_supply", Name: "Intercept Supply Lines", Group: GroupLogistics, Type: TypeLogistics, Target: TargetEnemy,
		Effect:             EffectDecreaseTarget,
		Description:        "Disrupt enemy logistics to weaken their momentum.",
		EligibleCategories: []string{"Scouts", "Light Cavalry", "Spies", "Skirmishers"},
	},
	{
		Key: "rally_troops", Name: "Rally Our Troops", Group: GroupLogistics, Type: TypeLogistics, Target: TargetSelf,
		Effect:             EffectIncreaseSelf,
		Description:        "Boost morale and coordination within your army.",
		EligibleCategories: []string{"Royal Guard", "Knights", "Swordsmen", "Shield Wall", "Heavy Infantry", "Light Infantry"},
	},
	{
		Key: "rapid_resupply", Name: "Rapid Resupply", Group: GroupLogistics, Type: TypeLogistics, Target: TargetSelf,
		Effect:             EffectIncreaseSelf,
		Description:        "Improve supply efficiency to bolster your battle score.",
		EligibleCategories: []string{"Scouts", "Spies", "Light Infantry", "Light Cavalry"},
	},
	{
		Key: "disrupt_comms", Name: "Disrupt Communications", Group: GroupLogistics, Type: TypeLogistics, Target: TargetEnemy,
		Effect:             EffectDecreaseTarget,
		Description:        "Confuse enemy command and reduce their effectiveness.",
		EligibleCategories: []string{"Spies", "Scouts"},
	},
	{
		Key: "supply_cache", Name: "Establish Supply Cache", Group: GroupLogistics, Type: TypeLogistics, Target: TargetSelf,
		Effect:             EffectIncreaseSelf,
		Description:        "Create hidden supply stations across the battlefield for sustained operations.",
		EligibleCategories: []string{"Scouts", "Light Cavalry", "Spies"},
	},
	{
		Key: "field_medical", Name: "Deploy Field Medical", Group: GroupLogistics, Type: TypeLogistics, Target: TargetSelf,
		Effect:             EffectIncreaseSelf,
		Description:        "Set up medical stations to reduce casualty impact and sustain forces.",
		EligibleCategories: []string{"Knights", "Royal Guard", "Swordsmen", "Heavy Infantry"},
	},

	// Unique
	{
		Key: "assassinate_commander", Name: "Assassinate Commander", Group: GroupUnique, Type: TypeAttack, Target: TargetEnemy,
		Effect: EffectDecreaseTargetHalfScore,
		Description: "Send elite assassins to eliminate or severely wound the enemy commander. " +
			"Deals damage equal to half the enemy's current battle score and always costs one casualty.",
		EligibleCategories: []string{"Assassins"},
		GuaranteedCasualty: 1,
	},
}
